// internal/server/handlers/trend.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"trendwire/internal/domain/trend"
)

// TrendHandler handles trend-related HTTP requests
type TrendHandler struct {
	monitor trend.Monitor
	store   trend.StateStore
	log     *zap.Logger
}

// NewTrendHandler creates a new trend handler
func NewTrendHandler(monitor trend.Monitor, store trend.StateStore, log *zap.Logger) *TrendHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrendHandler{
		monitor: monitor,
		store:   store,
		log:     log,
	}
}

// GetState returns the user's latest trend state
func (h *TrendHandler) GetState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	state, err := h.monitor.State(r.Context(), userID)
	if err != nil {
		if errors.Is(err, trend.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "No trend state for user", nil)
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to get trend state", err)
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, state)
}

// Refresh triggers an on-demand refresh cycle. A refresh already in flight
// for the user is joined, not duplicated.
func (h *TrendHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	state, err := h.monitor.Refresh(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, trend.ErrUserDisabled):
			h.respondWithError(w, http.StatusConflict, "Trend monitoring is disabled for user", nil)
		case errors.Is(err, trend.ErrNoContent):
			h.respondWithError(w, http.StatusBadGateway, "Refresh failed: no content items produced", nil)
		case errors.Is(err, trend.ErrMonitorStopped):
			h.respondWithError(w, http.StatusServiceUnavailable, "Trend monitor is shut down", nil)
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Refresh failed", err)
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, state)
}

// GetSpikes returns the user's active spikes, or recorded spike history when
// the history query parameter is set.
func (h *TrendHandler) GetSpikes(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	if r.URL.Query().Get("history") != "" || r.URL.Query().Get("term") != "" {
		term := r.URL.Query().Get("term")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		spikes, err := h.store.SpikeHistory(r.Context(), userID, term, limit)
		if err != nil {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to get spike history", err)
			return
		}
		h.respondWithJSON(w, http.StatusOK, spikes)
		return
	}

	state, err := h.monitor.State(r.Context(), userID)
	if err != nil {
		if errors.Is(err, trend.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "No trend state for user", nil)
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to get spikes", err)
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, state.Spikes)
}

// GetCorrelations returns the user's current correlation results
func (h *TrendHandler) GetCorrelations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	state, err := h.monitor.State(r.Context(), userID)
	if err != nil {
		if errors.Is(err, trend.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "No trend state for user", nil)
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to get correlations", err)
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, state.Correlations)
}

// GetStatus returns scheduler and staleness metadata for the user
func (h *TrendHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	status, err := h.monitor.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, trend.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Unknown user", nil)
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to get status", err)
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, status)
}

// Helper for JSON responses
func (h *TrendHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func (h *TrendHandler) respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil && code >= 500 {
		h.log.Error("request failed", zap.Int("code", code), zap.String("message", message), zap.Error(err))
	}

	response := map[string]string{"error": message}
	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}
