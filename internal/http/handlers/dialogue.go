package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/apptreply/internal/dialogue"
	"github.com/wolfman30/apptreply/pkg/logging"
)

const maxMessageBytes = 16 << 10

// DialogueService is the engine surface the HTTP layer drives.
type DialogueService interface {
	HandleMessage(ctx context.Context, appointmentID, text string) (dialogue.Result, error)
	Unlock(ctx context.Context, appointmentID string) error
}

// DialogueHandler exposes the dialogue engine over HTTP.
type DialogueHandler struct {
	service DialogueService
	logger  *logging.Logger
}

func NewDialogueHandler(service DialogueService, logger *logging.Logger) *DialogueHandler {
	if service == nil {
		panic("handlers: dialogue service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DialogueHandler{service: service, logger: logger}
}

type messageRequest struct {
	Message string `json:"message"`
}

// HandleMessage serves POST /appointments/{appointmentID}/messages.
func (h *DialogueHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	appointmentID := strings.TrimSpace(chi.URLParam(r, "appointmentID"))
	if appointmentID == "" {
		writeError(w, http.StatusBadRequest, "missing appointment id")
		return
	}

	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res, err := h.service.HandleMessage(r.Context(), appointmentID, req.Message)
	if err != nil {
		h.writeServiceError(w, appointmentID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Unlock serves POST /appointments/{appointmentID}/unlock.
func (h *DialogueHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	appointmentID := strings.TrimSpace(chi.URLParam(r, "appointmentID"))
	if appointmentID == "" {
		writeError(w, http.StatusBadRequest, "missing appointment id")
		return
	}
	if err := h.service.Unlock(r.Context(), appointmentID); err != nil {
		h.writeServiceError(w, appointmentID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment_id": appointmentID, "dialogue_open": true})
}

func (h *DialogueHandler) writeServiceError(w http.ResponseWriter, appointmentID string, err error) {
	switch {
	case errors.Is(err, dialogue.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, dialogue.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "appointment is cancelled")
	case errors.Is(err, dialogue.ErrVersionConflict):
		writeError(w, http.StatusConflict, "appointment changed concurrently, retry")
	default:
		h.logger.Error("dialogue request failed", "appointment_id", appointmentID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	}
}

// Health serves GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
