package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionHandler struct {
	sessionService service.SessionService
	validate       *validator.Validate
}

func NewSessionHandler(sessionService service.SessionService, v *validator.Validate) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, validate: v}
}

// RegisterRoutes mounts v1 session routes
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/sessions", authMw(http.HandlerFunc(h.startSession)))
	mux.Handle("/sessions/complete", authMw(http.HandlerFunc(h.completeSession)))
}

func (h *SessionHandler) startSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "user ID not found in context", "")
		return
	}

	var req dto.SessionStartDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload", err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	sess, err := h.sessionService.Start(r.Context(), userID, req.Category, req.Duration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start session", "")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

func (h *SessionHandler) completeSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "user ID not found in context", "")
		return
	}

	var req dto.SessionCompleteDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload", err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	sessionID, err := primitive.ObjectIDFromHex(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session ID", req.SessionID)
		return
	}

	sess, err := h.sessionService.Complete(r.Context(), userID, sessionID, req.CompletedDuration, req.Tracks)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found or already completed", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to complete session", "")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func sessionResponse(s *model.Session) dto.SessionResponseDTO {
	return dto.SessionResponseDTO{
		ID:                s.ID.Hex(),
		Category:          s.Category,
		Duration:          s.Duration,
		CompletedDuration: s.CompletedDuration,
		StartedAt:         s.StartedAt,
		EndedAt:           s.EndedAt,
		IsCompleted:       s.IsCompleted,
	}
}
