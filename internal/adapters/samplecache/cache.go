// Package samplecache owns session-indexed raw audio sample buffers and
// re-derives amplitude envelopes locally without another upload round-trip.
//
// The cache is bounded: when an insert would exceed capacity, the session
// with the oldest creation timestamp is evicted first. Buffers are copied
// on the way in and on the way out; a session's samples never change after
// creation.
package samplecache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundshape/panelsync/internal/domain/binning"
	"github.com/soundshape/panelsync/pkg/logger"
	"github.com/soundshape/panelsync/pkg/metrics"
)

// Default cache configuration constants.
const (
	defaultCapacity = 5
	bytesPerSample  = 4 // 32-bit floats
)

// SessionStats describes one cached session for introspection.
type SessionStats struct {
	SessionID   string    `json:"session_id"`
	SourceLabel string    `json:"source_label"`
	Fingerprint string    `json:"fingerprint"`
	SampleCount int       `json:"sample_count"`
	Bytes       int64     `json:"bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats is a read-only view of the cache contents.
type Stats struct {
	SessionCount int            `json:"session_count"`
	TotalBytes   int64          `json:"total_bytes"`
	PerSession   []SessionStats `json:"per_session"`
}

// Cache stores raw audio sample buffers by opaque session handle.
type Cache interface {
	// Store copies samples in, evicting the oldest session first when at
	// capacity, and returns a fresh session handle. Always succeeds.
	Store(ctx context.Context, sourceLabel, fingerprint string, samples []float32) string

	// Rehydrate restores a previously issued session after a reload,
	// keeping its original creation timestamp so eviction order survives
	// the restart; a zero createdAt falls back to the cache clock.
	// Idempotent: a session id that already exists is left untouched, so a
	// late-arriving restore cannot create a duplicate entry.
	Rehydrate(ctx context.Context, sessionID, sourceLabel, fingerprint string, samples []float32, createdAt time.Time)

	// Rebin derives a fresh amplitude envelope for the session under the
	// given parameters. Returns false when the session is unknown.
	Rebin(ctx context.Context, sessionID string, params binning.Params) ([]float64, bool)

	// Samples returns a copy of the session's raw buffer, or false when
	// the session is unknown.
	Samples(ctx context.Context, sessionID string) ([]float32, bool)

	// Has reports whether the session is currently cached.
	Has(ctx context.Context, sessionID string) bool

	// Clear removes one session unconditionally.
	Clear(ctx context.Context, sessionID string)

	// ClearAll removes every session.
	ClearAll(ctx context.Context)

	// Stats returns a read-only view of the cache contents.
	Stats(ctx context.Context) Stats
}

// session is one cached raw-audio buffer. Owned exclusively by the cache.
type session struct {
	id          string
	sourceLabel string
	fingerprint string
	samples     []float32
	createdAt   time.Time
	seq         uint64 // insertion order, tie-break for identical timestamps
}

// InMemoryCache implements Cache with a bounded map and inline eviction.
//
// Methods are synchronous CPU-bound loops over in-memory arrays, guarded by
// a single mutex for multi-threaded hosts. The zero value is not usable;
// construct with New.
type InMemoryCache struct {
	mu       sync.Mutex
	sessions map[string]*session
	capacity int
	nextSeq  uint64
	now      func() time.Time
	onRemove func(sessionID string)
	logger   logger.Logger
}

// Option applies a configuration option to the InMemoryCache.
type Option func(*InMemoryCache)

// WithCapacity bounds the number of cached sessions.
func WithCapacity(capacity int) Option {
	return func(c *InMemoryCache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *InMemoryCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the creation-timestamp source. Used in tests to make
// eviction order deterministic.
func WithClock(now func() time.Time) Option {
	return func(c *InMemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRemovalHook registers a callback invoked with the session id whenever
// a session leaves the cache, whether evicted or cleared. The host wires it
// to the persistence layer so durable records do not outlive their sessions.
// Called outside the cache lock; must not block.
func WithRemovalHook(hook func(sessionID string)) Option {
	return func(c *InMemoryCache) {
		if hook != nil {
			c.onRemove = hook
		}
	}
}

// New creates a new in-memory sample cache with configuration options.
func New(opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		sessions: make(map[string]*session),
		capacity: defaultCapacity,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Store copies the buffer in and returns a fresh opaque handle.
func (c *InMemoryCache) Store(ctx context.Context, sourceLabel, fingerprint string, samples []float32) string {
	c.mu.Lock()
	id := uuid.NewString()
	evicted := c.insert(ctx, id, sourceLabel, fingerprint, samples, time.Time{})
	c.mu.Unlock()

	c.notifyRemoved(evicted)
	return id
}

// Rehydrate restores a previously issued session id under its original
// creation timestamp. No-op when the id is already present.
func (c *InMemoryCache) Rehydrate(ctx context.Context, sessionID, sourceLabel, fingerprint string, samples []float32, createdAt time.Time) {
	c.mu.Lock()
	if _, exists := c.sessions[sessionID]; exists {
		c.mu.Unlock()
		return
	}
	evicted := c.insert(ctx, sessionID, sourceLabel, fingerprint, samples, createdAt)
	c.mu.Unlock()

	c.notifyRemoved(evicted)
}

// insert copies samples, evicts if needed, and publishes cache gauges.
// Returns the id of the evicted session, if any. A zero createdAt takes the
// current clock reading.
//
// Eviction runs after the insert so the incoming record competes on its own
// timestamp: restoring a record older than everything cached evicts that
// record, not a newer session.
func (c *InMemoryCache) insert(ctx context.Context, id, sourceLabel, fingerprint string, samples []float32, createdAt time.Time) string {
	buf := make([]float32, len(samples))
	copy(buf, samples)

	if createdAt.IsZero() {
		createdAt = c.now()
	}

	c.nextSeq++
	c.sessions[id] = &session{
		id:          id,
		sourceLabel: sourceLabel,
		fingerprint: fingerprint,
		samples:     buf,
		createdAt:   createdAt,
		seq:         c.nextSeq,
	}

	var evicted string
	if len(c.sessions) > c.capacity {
		evicted = c.evictOldest(ctx)
	}

	c.publishGauges()

	if c.logger != nil {
		c.logger.Debug(ctx, "cached audio session",
			logger.String("sessionID", id),
			logger.String("sourceLabel", sourceLabel),
			logger.Int("samples", len(buf)),
		)
	}
	return evicted
}

// evictOldest removes and returns the id of the session with the oldest
// creation timestamp, breaking ties by insertion order.
func (c *InMemoryCache) evictOldest(ctx context.Context) string {
	var oldest *session
	for _, s := range c.sessions {
		if oldest == nil ||
			s.createdAt.Before(oldest.createdAt) ||
			(s.createdAt.Equal(oldest.createdAt) && s.seq < oldest.seq) {
			oldest = s
		}
	}
	if oldest == nil {
		return ""
	}

	delete(c.sessions, oldest.id)
	metrics.RecordCacheEviction()

	if c.logger != nil {
		c.logger.Info(ctx, "evicted oldest audio session",
			logger.String("sessionID", oldest.id),
			logger.String("sourceLabel", oldest.sourceLabel),
		)
	}
	return oldest.id
}

// notifyRemoved runs the removal hook for each departed session, outside
// the cache lock.
func (c *InMemoryCache) notifyRemoved(sessionIDs ...string) {
	if c.onRemove == nil {
		return
	}
	for _, id := range sessionIDs {
		if id != "" {
			c.onRemove(id)
		}
	}
}

// Rebin derives an amplitude envelope for the session. Fails softly on an
// unknown session: logs, counts a miss, returns false.
func (c *InMemoryCache) Rebin(ctx context.Context, sessionID string, params binning.Params) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		metrics.RecordRebinMiss()
		if c.logger != nil {
			c.logger.Warn(ctx, "rebin requested for unknown session",
				logger.String("sessionID", sessionID),
			)
		}
		return nil, false
	}

	start := time.Now()
	out := binning.Rebin(s.samples, params)
	metrics.RecordRebin()
	metrics.RecordRebinLatency(float64(time.Since(start).Milliseconds()))

	return out, true
}

// Samples returns a copy of the raw buffer for the session.
func (c *InMemoryCache) Samples(_ context.Context, sessionID string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(s.samples))
	copy(out, s.samples)
	return out, true
}

// Has reports whether the session is currently cached.
func (c *InMemoryCache) Has(_ context.Context, sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.sessions[sessionID]
	return ok
}

// Clear removes one session unconditionally.
func (c *InMemoryCache) Clear(_ context.Context, sessionID string) {
	c.mu.Lock()
	_, existed := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.publishGauges()
	c.mu.Unlock()

	if existed {
		c.notifyRemoved(sessionID)
	}
}

// ClearAll removes every session.
func (c *InMemoryCache) ClearAll(_ context.Context) {
	c.mu.Lock()
	removed := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		removed = append(removed, id)
	}
	c.sessions = make(map[string]*session)
	c.publishGauges()
	c.mu.Unlock()

	c.notifyRemoved(removed...)
}

// Stats returns a read-only view of the cache contents, oldest first.
func (c *InMemoryCache) Stats(_ context.Context) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{PerSession: make([]SessionStats, 0, len(c.sessions))}
	for _, s := range c.sessions {
		bytes := int64(len(s.samples)) * bytesPerSample
		st.TotalBytes += bytes
		st.PerSession = append(st.PerSession, SessionStats{
			SessionID:   s.id,
			SourceLabel: s.sourceLabel,
			Fingerprint: s.fingerprint,
			SampleCount: len(s.samples),
			Bytes:       bytes,
			CreatedAt:   s.createdAt,
		})
	}
	st.SessionCount = len(st.PerSession)
	sort.Slice(st.PerSession, func(i, j int) bool {
		return st.PerSession[i].CreatedAt.Before(st.PerSession[j].CreatedAt)
	})
	return st
}

func (c *InMemoryCache) publishGauges() {
	var total int64
	for _, s := range c.sessions {
		total += int64(len(s.samples)) * bytesPerSample
	}
	metrics.UpdateCacheSessions(len(c.sessions))
	metrics.UpdateCacheBytes(total)
}
