package litigation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Handler exposes scans and case lifecycle endpoints.
type Handler struct {
	scanner *Scanner
	cases   *CaseService
	logger  *zap.SugaredLogger
}

func NewHandler(scanner *Scanner, cases *CaseService, logger *zap.SugaredLogger) *Handler {
	return &Handler{scanner: scanner, cases: cases, logger: logger}
}

type ScanRequest struct {
	Email string `json:"email"`
}

// Scan runs a scan for the user. A credential failure answers 401 so the
// caller can send the user back through authorization.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	report, err := h.scanner.Scan(r.Context(), req.Email)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, report)
	case errors.Is(err, ErrCredential):
		h.logger.Infow("scan needs authorization", "user", req.Email, "err", err)
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authorization required"})
	case errors.Is(err, ErrMailbox):
		h.logger.Warnw("scan mailbox", "user", req.Email, "err", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "mailbox unavailable"})
	default:
		h.logger.Errorw("scan failed", "user", req.Email, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scan failed"})
	}
}

func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	cases, err := h.cases.ListByUser(r.Context(), r.PathValue("email"))
	if err != nil {
		h.logger.Warnw("list cases", "user", r.PathValue("email"), "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, cases)
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	c, err := h.cases.Settle(r.Context(), id)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, c)
	case errors.Is(err, ErrCaseNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrInvalidTransition):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.logger.Warnw("settle case", "case_id", id, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "settle failed"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
