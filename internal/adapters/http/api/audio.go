// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// maxAudioBodyBytes caps an upload at roughly 16M samples in JSON form.
const maxAudioBodyBytes = 256 << 20

// AudioHandler handles raw sample uploads.
type AudioHandler struct {
	deps Dependencies
}

// NewAudioHandler creates a new audio handler.
func NewAudioHandler(deps Dependencies) *AudioHandler {
	return &AudioHandler{deps: deps}
}

// audioRequest mirrors the upload schema for POST /audio.
type audioRequest struct {
	SourceLabel string    `json:"source_label"`
	Samples     []float64 `json:"samples"`
}

func (a audioRequest) validate() error {
	switch {
	case strings.TrimSpace(a.SourceLabel) == "":
		return errors.New("missing source_label")
	case len(a.Samples) == 0:
		return errors.New("missing samples")
	}
	return nil
}

type audioResponse struct {
	SessionID   string `json:"session_id"`
	Fingerprint string `json:"fingerprint"`
	SampleCount int    `json:"sample_count"`
}

// HandlePostAudio handles POST /audio requests.
func (h *AudioHandler) HandlePostAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBodyBytes)

	var req audioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	samples := make([]float32, len(req.Samples))
	for i, s := range req.Samples {
		samples[i] = float32(s)
	}

	sessionID, fingerprint := h.deps.StoreAudio(r.Context(), req.SourceLabel, samples)

	writeJSON(w, http.StatusCreated, audioResponse{
		SessionID:   sessionID,
		Fingerprint: fingerprint,
		SampleCount: len(samples),
	})
}
