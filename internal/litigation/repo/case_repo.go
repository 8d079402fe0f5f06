package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/entity"
	"github.com/ovaphlow/pitchfork/service-litigation-go/pkg/utilities"
)

// CaseRepo stores cases in Postgres. Every mutation is a single statement or a
// single transaction.
type CaseRepo struct {
	db    *sqlx.DB
	newID func() int64
}

func NewCaseRepo(db *sqlx.DB) *CaseRepo { return &CaseRepo{db: db, newID: utilities.NextID} }

const caseColumns = `id, user_email, company, amount, law, subject, status, created_at, updated_at`

var resolvedStatuses = pq.Array([]string{string(entity.StatusSent), string(entity.StatusPaid)})

// EnsureTable creates the litigation_cases table if not exists (idempotent).
func (r *CaseRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS litigation_cases (
  id BIGINT PRIMARY KEY,
  user_email TEXT NOT NULL,
  company TEXT NOT NULL,
  amount TEXT NOT NULL,
  law TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL CHECK (status IN ('detected', 'sent', 'paid', 'error')),
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_litigation_cases_user_status ON litigation_cases (user_email, status);
CREATE INDEX IF NOT EXISTS idx_litigation_cases_status ON litigation_cases (status);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *CaseRepo) ListByUser(ctx context.Context, userEmail string) ([]entity.Case, error) {
	const q = `SELECT ` + caseColumns + ` FROM litigation_cases WHERE user_email=$1 ORDER BY created_at, id`
	out := []entity.Case{}
	if err := r.db.SelectContext(ctx, &out, q, userEmail); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByStatus returns cases in status; an empty userEmail means all users.
func (r *CaseRepo) ListByStatus(ctx context.Context, status entity.Status, userEmail string) ([]entity.Case, error) {
	q := `SELECT ` + caseColumns + ` FROM litigation_cases WHERE status=$1`
	args := []any{string(status)}
	if userEmail != "" {
		q += ` AND user_email=$2`
		args = append(args, userEmail)
	}
	q += ` ORDER BY created_at, id`
	out := []entity.Case{}
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// HasResolvedSubject reports whether the user has a sent or paid case with
// exactly this subject.
func (r *CaseRepo) HasResolvedSubject(ctx context.Context, userEmail, subject string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM litigation_cases WHERE user_email=$1 AND subject=$2 AND status = ANY($3::text[]))`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, q, userEmail, subject, resolvedStatuses); err != nil {
		return false, err
	}
	return ok, nil
}

// ReplaceDetected deletes the user's detected cases and inserts cases as
// detected, in one transaction serialized per user. A case whose subject
// already has a sent or paid case is not inserted. The inserted rows are
// returned.
func (r *CaseRepo) ReplaceDetected(ctx context.Context, userEmail string, cases []entity.Case) (inserted []entity.Case, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userEmail); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM litigation_cases WHERE user_email=$1 AND status=$2`, userEmail, string(entity.StatusDetected)); err != nil {
		return nil, err
	}

	const ins = `INSERT INTO litigation_cases (id, user_email, company, amount, law, subject, status)
		SELECT $1::bigint, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text
		WHERE NOT EXISTS (
			SELECT 1 FROM litigation_cases WHERE user_email=$2::text AND subject=$6::text AND status = ANY($8::text[])
		)
		RETURNING ` + caseColumns
	inserted = make([]entity.Case, 0, len(cases))
	for _, c := range cases {
		var row entity.Case
		err = tx.GetContext(ctx, &row, ins, r.newID(), userEmail, c.Company, c.Amount, c.Law, c.Subject, string(entity.StatusDetected), resolvedStatuses)
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, row)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

// Transition moves the case from one status to another. It reports false when
// the case is no longer in from or no longer exists.
func (r *CaseRepo) Transition(ctx context.Context, id int64, from, to entity.Status) (bool, error) {
	const q = `UPDATE litigation_cases SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2 RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id, string(from), string(to))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the case or sql.ErrNoRows.
func (r *CaseRepo) Get(ctx context.Context, id int64) (*entity.Case, error) {
	const q = `SELECT ` + caseColumns + ` FROM litigation_cases WHERE id=$1`
	var c entity.Case
	if err := r.db.GetContext(ctx, &c, q, id); err != nil {
		return nil, err
	}
	return &c, nil
}
