package assistant

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/carelink-health/carelink/pkg/logging"
)

// Handler exposes the turn pipeline over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the chat HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("assistant: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the chat endpoints under a chi router.
// Expected to be mounted under /v1
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/turn", h.handleTurn)
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = strings.TrimSpace(r.Header.Get("X-Session-ID"))
	}
	if strings.TrimSpace(req.SessionID) == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "missing prompt", http.StatusBadRequest)
		return
	}

	resp, err := h.service.HandleTurn(r.Context(), req)
	if err != nil {
		h.logger.Error("assistant handler: turn failed", "session_id", req.SessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
