package litigation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/classifier"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/directory"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/entity"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/mailbox"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user"
)

type ScanConfig struct {
	Query          string
	Limit          int64
	MailboxTimeout time.Duration
}

// ScanReport summarizes one scan. Clean is true when nothing was detected.
type ScanReport struct {
	NewCaseCount int           `json:"new_case_count"`
	TotalAmount  int64         `json:"total_amount"`
	Clean        bool          `json:"clean"`
	Cases        []entity.Case `json:"cases"`
}

// Scanner turns a user's mailbox into detected cases.
type Scanner struct {
	store      CaseStore
	accounts   Accounts
	source     mailbox.Source
	classifier Classifier
	dir        *directory.Directory
	metrics    *metrics.Metrics
	cfg        ScanConfig
	logger     *zap.SugaredLogger
}

func NewScanner(store CaseStore, accounts Accounts, source mailbox.Source, cls Classifier, dir *directory.Directory, m *metrics.Metrics, cfg ScanConfig, logger *zap.SugaredLogger) *Scanner {
	return &Scanner{store: store, accounts: accounts, source: source, classifier: cls, dir: dir, metrics: m, cfg: cfg, logger: logger}
}

// Scan searches the user's mailbox and replaces the user's detected cases with
// what it finds. Per-message failures skip the message.
//
// Errors: ErrCredential (nothing changed), ErrMailbox (search failed,
// nothing changed), or a storage error.
func (s *Scanner) Scan(ctx context.Context, email string) (ScanReport, error) {
	start := time.Now()
	report, outcome, err := s.scan(ctx, user.NormalizeEmail(email))
	s.metrics.ScanCompleted(outcome, report.NewCaseCount, time.Since(start))
	return report, err
}

func (s *Scanner) scan(ctx context.Context, email string) (ScanReport, string, error) {
	u, cred, err := s.accounts.Authorize(ctx, email)
	if err != nil {
		if isCredentialError(err) {
			return ScanReport{}, metrics.ScanCredential, fmt.Errorf("%w: %v", ErrCredential, err)
		}
		return ScanReport{}, metrics.ScanStore, err
	}

	searchCtx, cancel := withTimeout(ctx, s.cfg.MailboxTimeout)
	msgs, err := s.source.Search(searchCtx, cred, s.cfg.Query, s.cfg.Limit)
	cancel()
	if err != nil {
		return ScanReport{}, metrics.ScanMailbox, fmt.Errorf("%w: %v", ErrMailbox, err)
	}

	candidates := make([]entity.Case, 0, len(msgs))
	for _, m := range msgs {
		c, ok := s.evaluate(ctx, u.Email, cred, m)
		if ok {
			candidates = append(candidates, c)
		}
	}

	inserted, err := s.store.ReplaceDetected(ctx, u.Email, candidates)
	if err != nil {
		return ScanReport{}, metrics.ScanStore, fmt.Errorf("store scan result: %w", err)
	}

	report := ScanReport{Cases: inserted}
	for _, c := range inserted {
		n, _ := ParseAmount(c.Amount)
		report.TotalAmount += n
	}
	report.NewCaseCount = len(inserted)
	report.Clean = report.NewCaseCount == 0
	if len(inserted) < len(candidates) {
		s.logger.Infow("cases resolved during scan not recreated", "user", u.Email, "dropped", len(candidates)-len(inserted))
	}
	return report, metrics.ScanOK, nil
}

// evaluate runs one message through dedup, classification, overrides, company
// resolution and amount parsing. It reports false when the message is not a
// case or could not be processed.
func (s *Scanner) evaluate(ctx context.Context, email string, cred credential.Credential, m mailbox.Message) (entity.Case, bool) {
	if m.Subject == "" {
		fetchCtx, cancel := withTimeout(ctx, s.cfg.MailboxTimeout)
		full, err := s.source.Fetch(fetchCtx, cred, m.ID)
		cancel()
		if err != nil {
			s.logger.Warnw("fetch message", "user", email, "message_id", m.ID, "err", err)
			return entity.Case{}, false
		}
		m = full
	}

	resolved, err := s.store.HasResolvedSubject(ctx, email, m.Subject)
	if err != nil {
		s.logger.Warnw("dedup lookup", "user", email, "message_id", m.ID, "err", err)
		return entity.Case{}, false
	}
	if resolved {
		return entity.Case{}, false
	}

	res := s.classifier.Classify(ctx, m.Subject, m.Snippet)
	override, overridden := s.dir.MatchOverride(m.Subject)
	if !res.IsCase() && !overridden {
		return entity.Case{}, false
	}

	company := s.dir.Resolve(m.Subject, m.Snippet)
	amount := res.Amount
	if overridden {
		company, amount = override.Company, override.Amount
	}

	n, err := ParseAmount(amount)
	if err != nil || n == 0 {
		s.logger.Debugw("discard zero amount", "user", email, "message_id", m.ID, "amount", amount)
		return entity.Case{}, false
	}

	law := res.Law
	if !res.IsCase() || isBlank(law) || strings.EqualFold(law, classifier.NoCase) {
		_, law = s.dir.Recipient(company, "")
	}
	return entity.Case{
		UserEmail: email,
		Company:   company,
		Amount:    FormatAmount(n),
		Law:       law,
		Subject:   m.Subject,
		Status:    entity.StatusDetected,
	}, true
}

// withTimeout bounds ctx by d; d <= 0 leaves it unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
