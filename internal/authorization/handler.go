package authorization

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/metrics"
)

// maxEventBytes bounds the webhook body.
const maxEventBytes = 16 << 10

type Dispatcher interface {
	Dispatch(ctx context.Context, email string) (litigation.DispatchResult, error)
}

// Handler receives billing authorization events.
type Handler struct {
	verifier   *Verifier
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger
}

func NewHandler(verifier *Verifier, dispatcher Dispatcher, m *metrics.Metrics, logger *zap.SugaredLogger) *Handler {
	return &Handler{verifier: verifier, dispatcher: dispatcher, metrics: m, logger: logger}
}

// Billing verifies the event carried in the body (compact JWT, raw or as
// {"event": "..."}) and triggers dispatch. Unverified events are rejected
// with 400 and change nothing.
func (h *Handler) Billing(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		h.reject(w, err)
		return
	}
	token := string(body)
	var wrapped struct {
		Event string `json:"event"`
	}
	if json.Unmarshal(body, &wrapped) == nil && wrapped.Event != "" {
		token = wrapped.Event
	}

	ev, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		h.reject(w, err)
		return
	}
	h.metrics.EventReceived("accepted")
	h.logger.Infow("authorization event accepted", "event_id", ev.ID, "user", ev.Email)

	res, err := h.dispatcher.Dispatch(r.Context(), ev.Email)
	if err != nil {
		h.logger.Errorw("dispatch trigger", "event_id", ev.ID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "dispatch failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) reject(w http.ResponseWriter, err error) {
	h.metrics.EventReceived("rejected")
	if errors.Is(err, ErrUnverifiedEvent) {
		h.logger.Warnw("authorization event rejected", "err", err)
	} else {
		h.logger.Warnw("read authorization event", "err", err)
	}
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rejected"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
