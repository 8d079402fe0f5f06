package litigation

import (
	"context"
	"errors"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/classifier"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/entity"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-litigation-go/internal/user/entity"
)

// CaseStore is the case persistence used by scans and dispatch. See
// repo.CaseRepo for the Postgres implementation.
type CaseStore interface {
	ListByUser(ctx context.Context, userEmail string) ([]entity.Case, error)
	ListByStatus(ctx context.Context, status entity.Status, userEmail string) ([]entity.Case, error)
	HasResolvedSubject(ctx context.Context, userEmail, subject string) (bool, error)
	ReplaceDetected(ctx context.Context, userEmail string, cases []entity.Case) ([]entity.Case, error)
	Transition(ctx context.Context, id int64, from, to entity.Status) (bool, error)
	Get(ctx context.Context, id int64) (*entity.Case, error)
}

// Accounts hands out a refreshed mailbox credential for a user.
type Accounts interface {
	Authorize(ctx context.Context, email string) (*userentity.User, credential.Credential, error)
}

type Classifier interface {
	Classify(ctx context.Context, subject, snippet string) classifier.Result
}

// isCredentialError reports whether err from Accounts means the user cannot be
// authorized, as opposed to a storage failure.
func isCredentialError(err error) bool {
	return errors.Is(err, user.ErrUserNotFound) ||
		errors.Is(err, user.ErrNoCredential) ||
		errors.Is(err, credential.ErrRefresh) ||
		errors.Is(err, credential.ErrInvalid)
}
