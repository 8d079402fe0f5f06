package directory

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the directory read-only.
type Handler struct {
	dir    *Directory
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(dir *Directory, logger *zap.SugaredLogger) *Handler {
	return &Handler{dir: dir, logger: logger}
}

type listResponse struct {
	Companies []Entry    `json:"companies"`
	Overrides []Override `json:"overrides"`
}

// List returns companies and overrides in declaration order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(listResponse{Companies: h.dir.Entries(), Overrides: h.dir.Overrides()}); err != nil {
		h.logger.Debugw("write directory", "err", err)
	}
}
