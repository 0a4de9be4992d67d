package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// maxBodyBytes caps request bodies on the control API.
const maxBodyBytes = 64 << 10

// Engine is the part of the coordinator the control API drives.
type Engine interface {
	AddSong(ctx context.Context, req models.AddSongRequest) models.AddResult
	Vote(ctx context.Context, index int, user string) bool
	Skip(ctx context.Context, count int) []string
	GetQueue() []models.QueueEntry
	NowPlaying() models.NowPlaying
}

// ControlHandler serves the JSON control API.
type ControlHandler struct {
	engine Engine
	logger *log.Logger
}

// NewControlHandler creates a handler for engine.
func NewControlHandler(engine Engine, logger *log.Logger) *ControlHandler {
	return &ControlHandler{
		engine: engine,
		logger: shared.WithLogger(logger, "component", "control"),
	}
}

func (h *ControlHandler) Routes() []string {
	return []string{
		"/health",
		"/api/queue",
		"/api/now-playing",
		"/api/songs",
		"/api/votes",
		"/api/skip",
	}
}

func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		if methodAllowed(w, r, http.MethodGet) {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "queued": len(h.engine.GetQueue())})
		}
	case "/api/queue":
		if methodAllowed(w, r, http.MethodGet) {
			entries := h.engine.GetQueue()
			if entries == nil {
				entries = []models.QueueEntry{}
			}
			writeJSON(w, http.StatusOK, entries)
		}
	case "/api/now-playing":
		if methodAllowed(w, r, http.MethodGet) {
			writeJSON(w, http.StatusOK, h.engine.NowPlaying())
		}
	case "/api/songs":
		if methodAllowed(w, r, http.MethodPost) {
			h.addSong(w, r)
		}
	case "/api/votes":
		if methodAllowed(w, r, http.MethodPost) {
			h.vote(w, r)
		}
	case "/api/skip":
		if methodAllowed(w, r, http.MethodPost) {
			h.skip(w, r)
		}
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *ControlHandler) addSong(w http.ResponseWriter, r *http.Request) {
	var req models.AddSongRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result := h.engine.AddSong(r.Context(), req)
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ControlHandler) vote(w http.ResponseWriter, r *http.Request) {
	var req models.VoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	switch {
	case req.UserID == "":
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	case req.Position < 1:
		writeError(w, http.StatusBadRequest, "position must be 1 or greater")
		return
	}

	accepted := h.engine.Vote(r.Context(), req.Position-1, req.UserID)
	writeJSON(w, http.StatusOK, models.VoteResult{Accepted: accepted})
}

func (h *ControlHandler) skip(w http.ResponseWriter, r *http.Request) {
	req := models.SkipRequest{Count: 1}
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	if req.Count < 0 {
		writeError(w, http.StatusBadRequest, "count must not be negative")
		return
	}

	retired := h.engine.Skip(r.Context(), req.Count)
	if retired == nil {
		retired = []string{}
	}
	writeJSON(w, http.StatusOK, models.SkipResult{Retired: retired})
}

// decode reads a JSON body into v, writing a 400 on failure.
func (h *ControlHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.logger.Debug("rejected request body", "path", r.URL.Path, "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
