package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"chessmate/internal/status"
)

// StatusHandler records and lists client status checks.
type StatusHandler struct {
	service *status.Service
	logger  *slog.Logger
}

// NewStatusHandler creates a handler.
func NewStatusHandler(service *status.Service, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{service: service, logger: logger}
}

type statusCheckResponse struct {
	ID         uuid.UUID `json:"id"`
	ClientName string    `json:"client_name"`
	Timestamp  time.Time `json:"timestamp"`
}

func newStatusCheckResponse(c status.Check) statusCheckResponse {
	return statusCheckResponse{ID: c.ID, ClientName: c.ClientName, Timestamp: c.Timestamp}
}

// Create stores a status check.
func (h *StatusHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ClientName string `json:"client_name"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	check, err := h.service.Create(r.Context(), payload.ClientName)
	if err != nil {
		if errors.Is(err, status.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create status check", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create status check")
		return
	}
	writeJSON(w, http.StatusOK, newStatusCheckResponse(check))
}

// List returns stored status checks.
func (h *StatusHandler) List(w http.ResponseWriter, r *http.Request) {
	checks, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list status checks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list status checks")
		return
	}

	resp := make([]statusCheckResponse, 0, len(checks))
	for _, c := range checks {
		resp = append(resp, newStatusCheckResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}
