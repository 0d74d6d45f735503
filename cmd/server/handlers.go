package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/himanishpuri/Podometre/internal/config"
	"github.com/himanishpuri/Podometre/pkg/podometre"
	"github.com/himanishpuri/Podometre/pkg/podometre/cadence"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service podometre.Service
	config  *config.ServerConfig
	log     podometre.Logger
	started time.Time
}

// NewServer creates a new server instance
func NewServer(service podometre.Service, cfg *config.ServerConfig, log podometre.Logger) *Server {
	return &Server{
		service: service,
		config:  cfg,
		log:     log,
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondServiceError maps service errors onto HTTP status codes
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, podometre.ErrInvalidRequest):
		code = http.StatusBadRequest
	case errors.Is(err, podometre.ErrConfig):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, podometre.ErrSessionNotFound):
		code = http.StatusNotFound
	case errors.Is(err, podometre.ErrSessionExists):
		code = http.StatusConflict
	case errors.Is(err, podometre.ErrTooManySessions):
		code = http.StatusServiceUnavailable
	}

	if code == http.StatusInternalServerError {
		s.log.Errorf("Request failed: %v", err)
		s.respondError(w, code, "Internal error")
		return
	}
	s.log.Warnf("Rejected request: %v", err)
	s.respondError(w, code, err.Error())
}

// decodeJSON reads a size-limited JSON body into dst
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		s.log.Warnf("Invalid JSON body: %v", err)
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "Podometre API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"metrics":         "GET /api/health/metrics",
			"ingest":          "POST /verticalAcceleration",
			"state":           "GET /verticalAcceleration?name={id}",
			"listSessions":    "GET /api/sessions",
			"createSession":   "POST /api/sessions",
			"getSession":      "GET /api/sessions/{id}",
			"deleteSession":   "DELETE /api/sessions/{id}",
			"pushSamples":     "POST /api/sessions/{id}/samples",
			"sessionEstimate": "GET /api/sessions/{id}/estimates?limit={n}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.log.Errorf("Failed to collect stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:   "healthy",
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Started:  s.started,
		Stats:    stats,
		Settings: s.service.Settings(),
	})
}

// handleIngest handles POST /verticalAcceleration
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req VerticalAccelerationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	snap, err := s.service.Ingest(r.Context(), req.ToIngest())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newVerticalAccelerationResponse(snap))
}

// handleState handles GET /verticalAcceleration
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = podometre.DefaultSessionID
	}

	snap, err := s.service.GetSession(name)
	if errors.Is(err, podometre.ErrSessionNotFound) && name == podometre.DefaultSessionID {
		// nothing posted yet, report the initial state
		snap = s.initialSnapshot(name)
		err = nil
	}
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newVerticalAccelerationResponse(snap))
}

func (s *Server) initialSnapshot(id string) *podometre.Snapshot {
	settings := s.service.Settings()
	return &podometre.Snapshot{
		ID:          id,
		SampleRate:  settings.SampleRate,
		WindowSize:  settings.WindowSize,
		Estimate:    cadence.Filling(),
		Buffer:      []float64{},
		Band:        settings.Band,
		Policy:      settings.ResetPolicy,
		ElapsedMode: settings.ElapsedMode,
	}
}

// handleListSessions handles GET /api/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.service.ListSessions()
	s.respondJSON(w, http.StatusOK, ListSessionsResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

// handleCreateSession handles POST /api/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &req) {
			return
		}
	}

	snap, err := s.service.CreateSession(r.Context(), podometre.CreateSessionRequest{
		SessionID:  req.ID,
		SampleRate: req.SampleRate,
		WindowSize: req.WindowSize,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, snap)
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetSession(mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

// handleDeleteSession handles DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteSession(r.Context(), id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteSessionResponse{
		Message: "Session deleted successfully",
		ID:      id,
	})
}

// handlePushSamples handles POST /api/sessions/{id}/samples
func (s *Server) handlePushSamples(w http.ResponseWriter, r *http.Request) {
	var req SamplesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	snap, err := s.service.Ingest(r.Context(), req.ToIngest(mux.Vars(r)["id"]))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

// handleEstimates handles GET /api/sessions/{id}/estimates
func (s *Server) handleEstimates(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.service.History(r.Context(), id, limit)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, EstimatesResponse{
		SessionID: id,
		Estimates: records,
		Count:     len(records),
	})
}
