// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soundshape/panelsync/internal/app"
	"github.com/soundshape/panelsync/internal/domain/model"
)

// CompositionHandler serves the committed snapshot and accepts updates.
type CompositionHandler struct {
	deps Dependencies
}

// NewCompositionHandler creates a new composition handler.
func NewCompositionHandler(deps Dependencies) *CompositionHandler {
	return &CompositionHandler{deps: deps}
}

// compositionRequest mirrors the update schema for POST /composition.
type compositionRequest struct {
	Snapshot model.CompositionSnapshot `json:"snapshot"`
}

func (c compositionRequest) validate() error {
	switch {
	case c.Snapshot.NumberSections <= 0:
		return errors.New("number_sections must be positive")
	case c.Snapshot.NumberSlots <= 0:
		return errors.New("number_slots must be positive")
	}
	return nil
}

// HandleComposition handles GET and POST /composition requests.
func (h *CompositionHandler) HandleComposition(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.Composition(r.Context()))
	case http.MethodPost:
		h.handleUpdate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *CompositionHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req compositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	result, err := h.deps.Update(r.Context(), req.Snapshot)
	if err != nil {
		status, code := classifyUpdateError(err)
		writeError(w, status, code, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// classifyUpdateError maps pipeline errors to HTTP semantics. All of them
// are recoverable: the committed state is unchanged.
func classifyUpdateError(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrRebinUnavailable):
		return http.StatusConflict, "session_gone"
	case errors.Is(err, app.ErrStaleUpdate):
		return http.StatusConflict, "superseded"
	case errors.Is(err, app.ErrRemoteCompute):
		return http.StatusBadGateway, "compute_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
