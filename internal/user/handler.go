package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
)

// Handler exposes HTTP endpoints for user registration.
type Handler struct {
	svc    *UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRequest is sent by the authorization front once the user granted
// mailbox access.
type RegisterRequest struct {
	Email       string                 `json:"email"`
	DisplayName string                 `json:"display_name"`
	Credential  *credential.Credential `json:"credential"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.DisplayName, req.Credential)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Warnw("register failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "register failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
