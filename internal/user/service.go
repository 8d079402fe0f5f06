package user

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-litigation-go/internal/user/repo"
)

// UserService owns user records and their sealed mailbox credentials.
type UserService struct {
	repo     *userrepo.UserRepo
	sealer   *credential.Sealer
	defaults credential.Credential
	logger   *zap.SugaredLogger
}

func NewUserService(db *sqlx.DB, r *userrepo.UserRepo, sealer *credential.Sealer, logger *zap.SugaredLogger) *UserService {
	if r == nil {
		r = userrepo.NewUserRepo(db)
	}
	return &UserService{repo: r, sealer: sealer, logger: logger}
}

// SetClientDefaults sets the client settings applied to registered
// credentials that omit them.
func (s *UserService) SetClientDefaults(d credential.Credential) {
	s.defaults = d
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNoCredential = errors.New("user has no usable credential")
	ErrInvalidInput = errors.New("invalid input")
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates or updates a user after a successful authorization. A nil
// credential keeps whatever is stored.
func (s *UserService) Register(ctx context.Context, email, displayName string, cred *credential.Credential) (*entity.User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	var sealed []byte
	if cred != nil {
		c := cred.WithDefaults(s.defaults)
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		var err error
		if sealed, err = s.sealer.Seal(c); err != nil {
			return nil, err
		}
	}
	return s.repo.Upsert(ctx, email, strings.TrimSpace(displayName), sealed)
}

// Get returns the user for email or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Authorize loads the user's credential and refreshes it. The refreshed
// credential is stored back so rotated refresh tokens are not lost.
//
// Errors: ErrUserNotFound, ErrNoCredential (never authorized or unreadable),
// credential.ErrRefresh (token endpoint refused).
func (s *UserService) Authorize(ctx context.Context, email string) (*entity.User, credential.Credential, error) {
	u, err := s.Get(ctx, email)
	if err != nil {
		return nil, credential.Credential{}, err
	}
	if !u.HasCredential() {
		return nil, credential.Credential{}, ErrNoCredential
	}
	cred, err := s.sealer.Open(u.Credential)
	if err != nil {
		return nil, credential.Credential{}, fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	if err := cred.Validate(); err != nil {
		return nil, credential.Credential{}, fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	fresh, err := cred.Refresh(ctx)
	if err != nil {
		return nil, credential.Credential{}, err
	}
	sealed, err := s.sealer.Seal(fresh)
	if err == nil {
		err = s.repo.UpdateCredential(ctx, u.ID, sealed)
	}
	if err != nil {
		s.logger.Warnw("store refreshed credential", "email", u.Email, "err", err)
	} else {
		u.Credential = sealed
	}
	return u, fresh, nil
}

// ConstantTimeCompare helper for API keys.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
