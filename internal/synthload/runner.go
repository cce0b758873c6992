package synthload

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/soundshape/panelsync/internal/domain/model"
	"github.com/soundshape/panelsync/pkg/logger"
)

// Run executes one synthetic load run: upload a set of generated audio
// buffers, then drive a chain of randomized composition updates through
// the service and report how they were classified.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime:    time.Now(),
		BranchCounts: map[string]int{},
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // load generation, not crypto

	logger.Get().Info(ctx, "starting synthetic load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("updates", config.NumUpdates),
		logger.Int("buffers", config.NumBuffers),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("seed", seed))

	client := newHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	sessions, err := uploadBuffers(ctx, client, config, rng, stats)
	if err != nil {
		return fmt.Errorf("buffer upload failed: %w", err)
	}

	if err := submitUpdates(ctx, client, config, rng, sessions, stats); err != nil {
		return fmt.Errorf("update submission failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "run completed")
	return nil
}

// checkServiceHealth verifies the service is up before generating load.
func checkServiceHealth(ctx context.Context, client *httpClient, config *Config) error {
	resp, err := client.get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// uploadBuffers posts generated audio buffers concurrently. Uploading more
// buffers than the server-side cache holds exercises eviction.
func uploadBuffers(ctx context.Context, client *httpClient, config *Config, rng *rand.Rand, stats *Stats) ([]Session, error) {
	logger.Get().Info(ctx, "uploading synthetic buffers", logger.Int("count", config.NumBuffers))

	type uploadReq struct {
		SourceLabel string    `json:"source_label"`
		Samples     []float64 `json:"samples"`
	}

	// Buffers are generated up front so the shared rng stays single-threaded.
	requests := make([]uploadReq, config.NumBuffers)
	for i := range requests {
		buf := generateBuffer(rng, i, config.BufferLen)
		samples := make([]float64, len(buf))
		for j, s := range buf {
			samples[j] = float64(s)
		}
		requests[i] = uploadReq{
			SourceLabel: fmt.Sprintf("synth-%d.wav", i),
			Samples:     samples,
		}
	}

	sessions := make([]Session, len(requests))
	errs := make([]error, len(requests))

	workers := config.Workers
	if workers > len(requests) {
		workers = len(requests)
	}
	if workers < 1 {
		workers = 1
	}

	indexChan := make(chan int, len(requests))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexChan {
				sessions[i], errs[i] = uploadOne(ctx, client, config, requests[i])
			}
		}()
	}
	for i := range requests {
		indexChan <- i
	}
	close(indexChan)
	wg.Wait()

	out := make([]Session, 0, len(sessions))
	for i, s := range sessions {
		if errs[i] != nil {
			logger.Get().Warn(ctx, "buffer upload failed", logger.Int("index", i), logger.Error(errs[i]))
			continue
		}
		out = append(out, s)
	}
	stats.BuffersUploaded = len(out)
	if len(out) == 0 && config.NumBuffers > 0 {
		return nil, fmt.Errorf("all %d uploads failed", config.NumBuffers)
	}

	logger.Get().Info(ctx, "buffers uploaded", logger.Int("count", len(out)))
	return out, nil
}

func uploadOne(ctx context.Context, client *httpClient, config *Config, body interface{}) (Session, error) {
	resp, err := client.postJSON(ctx, config.BaseURL+"/audio", body)
	if err != nil {
		return Session{}, err
	}
	data, err := readBody(resp)
	if err != nil {
		return Session{}, err
	}
	if resp.StatusCode != http.StatusCreated {
		return Session{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return s, nil
}

// submitUpdates drives a sequential mutation chain. Updates are chained
// rather than concurrent: each mutation applies to the snapshot the server
// last committed, matching how a configurator UI produces edits.
func submitUpdates(ctx context.Context, client *httpClient, config *Config, rng *rand.Rand, sessions []Session, stats *Stats) error {
	logger.Get().Info(ctx, "submitting updates", logger.Int("count", config.NumUpdates))

	snap := initialSnapshot()
	if current, err := fetchComposition(ctx, client, config); err == nil && current.NumberSections > 0 {
		snap = current
	}

	for i := 0; i < config.NumUpdates; i++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during update submission: %w", ctx.Err())
		default:
		}

		mutation(rng, &snap, sessions)
		stats.UpdatesSubmitted++

		result, err := submitOne(ctx, client, config, snap)
		if err != nil {
			stats.UpdatesRejected++
			if config.Verbose {
				logger.Get().Warn(ctx, "update rejected", logger.Int("index", i), logger.Error(err))
			}
			// Resync with the committed state before mutating further.
			if current, ferr := fetchComposition(ctx, client, config); ferr == nil {
				snap = current
			}
			continue
		}

		stats.UpdatesAccepted++
		stats.BranchCounts[result.Branch]++
	}
	return nil
}

func submitOne(ctx context.Context, client *httpClient, config *Config, snap model.CompositionSnapshot) (UpdateResult, error) {
	body := struct {
		Snapshot model.CompositionSnapshot `json:"snapshot"`
	}{Snapshot: snap}

	resp, err := client.postJSON(ctx, config.BaseURL+"/composition", body)
	if err != nil {
		return UpdateResult{}, err
	}
	data, err := readBody(resp)
	if err != nil {
		return UpdateResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return UpdateResult{}, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}

	var result UpdateResult
	if err := json.Unmarshal(data, &result); err != nil {
		return UpdateResult{}, fmt.Errorf("failed to decode update response: %w", err)
	}
	return result, nil
}

func fetchComposition(ctx context.Context, client *httpClient, config *Config) (model.CompositionSnapshot, error) {
	resp, err := client.get(ctx, config.BaseURL+"/composition")
	if err != nil {
		return model.CompositionSnapshot{}, err
	}
	data, err := readBody(resp)
	if err != nil {
		return model.CompositionSnapshot{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return model.CompositionSnapshot{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var snap model.CompositionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.CompositionSnapshot{}, err
	}
	return snap, nil
}

// displayFinalStats logs the run summary.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var updatesPerSecond float64
	if stats.Duration > 0 {
		updatesPerSecond = float64(stats.UpdatesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("buffersUploaded", stats.BuffersUploaded),
		logger.Int("updatesSubmitted", stats.UpdatesSubmitted),
		logger.Int("updatesAccepted", stats.UpdatesAccepted),
		logger.Int("updatesRejected", stats.UpdatesRejected),
		logger.Any("branchCounts", stats.BranchCounts),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("updatesPerSecond", updatesPerSecond))
}
