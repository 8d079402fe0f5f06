package litigation

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/entity"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user"
)

// CaseService serves case queries and the external settlement confirmation.
type CaseService struct {
	store  CaseStore
	logger *zap.SugaredLogger
}

func NewCaseService(store CaseStore, logger *zap.SugaredLogger) *CaseService {
	return &CaseService{store: store, logger: logger}
}

func (s *CaseService) ListByUser(ctx context.Context, email string) ([]entity.Case, error) {
	return s.store.ListByUser(ctx, user.NormalizeEmail(email))
}

// Settle records payment of a sent case.
//
// Errors: ErrCaseNotFound, ErrInvalidTransition.
func (s *CaseService) Settle(ctx context.Context, id int64) (*entity.Case, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransition(c.Status, entity.StatusPaid) {
		return nil, ErrInvalidTransition
	}
	ok, err := s.store.Transition(ctx, id, entity.StatusSent, entity.StatusPaid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	s.logger.Infow("case settled", "case_id", id, "user", c.UserEmail, "amount", c.Amount)
	return s.get(ctx, id)
}

func (s *CaseService) get(ctx context.Context, id int64) (*entity.Case, error) {
	c, err := s.store.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && c == nil) {
		return nil, ErrCaseNotFound
	}
	return c, err
}
