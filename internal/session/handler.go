package session

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/carelink-health/carelink/pkg/logging"
)

// Handler binds authenticated users to chat sessions. The hospital's auth
// gateway calls it after a successful login.
type Handler struct {
	identities IdentityMap
	logger     *logging.Logger
}

// NewHandler creates the session HTTP handler.
func NewHandler(identities IdentityMap, logger *logging.Logger) *Handler {
	if identities == nil {
		panic("session: identity map cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{identities: identities, logger: logger}
}

// Routes returns the session endpoints as a mountable router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	return r
}

type loginRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.UserID) == "" {
		http.Error(w, "sessionId and userId are required", http.StatusBadRequest)
		return
	}

	if err := h.identities.SetUserID(r.Context(), req.SessionID, req.UserID); err != nil {
		h.logger.Error("session handler: bind identity", "session_id", req.SessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
