package litigation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/directory"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/entity"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/mailbox"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-litigation-go/internal/user/entity"
)

type DispatchConfig struct {
	// Scope is config.ScopeGlobal (every user's detected cases) or
	// config.ScopeUser (only the authorizing user's).
	Scope             string
	Workers           int
	Timeout           time.Duration
	NotifyTimeout     time.Duration
	FallbackRecipient string
	CommissionPercent int64
}

// DispatchResult counts case outcomes of one trigger. Skipped cases keep their
// status: their user could not be authorized or another trigger claimed them.
type DispatchResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Engine sends formal notices for detected cases.
type Engine struct {
	store    CaseStore
	accounts Accounts
	sender   mailbox.Sender
	dir      *directory.Directory
	sink     notify.Sink
	metrics  *metrics.Metrics
	cfg      DispatchConfig
	logger   *zap.SugaredLogger
}

func NewEngine(store CaseStore, accounts Accounts, sender mailbox.Sender, dir *directory.Directory, sink notify.Sink, m *metrics.Metrics, cfg DispatchConfig, logger *zap.SugaredLogger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Engine{store: store, accounts: accounts, sender: sender, dir: dir, sink: sink, metrics: m, cfg: cfg, logger: logger}
}

// Dispatch processes detected cases after an authorization event for email.
// Each case is claimed with a conditional detected to sent transition before
// anything is sent, so concurrent triggers never send a case twice. Only a
// failure to list cases is returned; per-case outcomes are in the result.
//
// Dispatch is not cancelled with ctx: a claimed case always reaches sent or
// error.
func (e *Engine) Dispatch(ctx context.Context, email string) (DispatchResult, error) {
	ctx = context.WithoutCancel(ctx)
	scope := ""
	if e.cfg.Scope == config.ScopeUser {
		scope = user.NormalizeEmail(email)
	}
	cases, err := e.store.ListByStatus(ctx, entity.StatusDetected, scope)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("list detected cases: %w", err)
	}

	var (
		mu  sync.Mutex
		res DispatchResult
	)
	add := func(r DispatchResult) {
		mu.Lock()
		res.Sent += r.Sent
		res.Failed += r.Failed
		res.Skipped += r.Skipped
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for _, batch := range groupByUser(cases) {
		g.Go(func() error {
			add(e.dispatchUser(ctx, batch))
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Infow("dispatch finished", "trigger", email, "scope", e.cfg.Scope,
		"sent", res.Sent, "failed", res.Failed, "skipped", res.Skipped)
	return res, nil
}

// dispatchUser handles one user's cases in order with a single credential
// refresh.
func (e *Engine) dispatchUser(ctx context.Context, cases []entity.Case) DispatchResult {
	var res DispatchResult
	email := cases[0].UserEmail
	u, cred, err := e.accounts.Authorize(ctx, email)
	if err != nil {
		e.logger.Warnw("skip user cases", "user", email, "cases", len(cases), "err", err)
		res.Skipped = len(cases)
		for range cases {
			e.metrics.CaseDispatched(metrics.DispatchSkipped, 0)
		}
		return res
	}
	for _, c := range cases {
		switch e.dispatchCase(ctx, u, cred, c) {
		case metrics.DispatchSent:
			res.Sent++
		case metrics.DispatchFailed:
			res.Failed++
		default:
			res.Skipped++
		}
	}
	return res
}

// dispatchCase returns the outcome label of the case.
func (e *Engine) dispatchCase(ctx context.Context, u *userentity.User, cred credential.Credential, c entity.Case) string {
	claimed, err := e.store.Transition(ctx, c.ID, entity.StatusDetected, entity.StatusSent)
	if err != nil {
		e.logger.Warnw("claim case", "case_id", c.ID, "err", err)
		e.metrics.CaseDispatched(metrics.DispatchSkipped, 0)
		return metrics.DispatchSkipped
	}
	if !claimed {
		e.logger.Debugw("case claimed elsewhere or gone", "case_id", c.ID)
		e.metrics.CaseDispatched(metrics.DispatchSkipped, 0)
		return metrics.DispatchSkipped
	}

	if err := e.send(ctx, u, cred, c); err != nil {
		e.logger.Warnw("dispatch case", "case_id", c.ID, "user", c.UserEmail, "company", c.Company, "err", err)
		if ok, terr := e.store.Transition(ctx, c.ID, entity.StatusSent, entity.StatusError); terr != nil || !ok {
			e.logger.Errorw("record dispatch failure", "case_id", c.ID, "updated", ok, "err", terr)
		}
		e.metrics.CaseDispatched(metrics.DispatchFailed, 0)
		return metrics.DispatchFailed
	}

	amount, _ := ParseAmount(c.Amount)
	commission := Commission(amount, e.cfg.CommissionPercent)
	e.metrics.CaseDispatched(metrics.DispatchSent, commission)
	e.notify(ctx, notify.CommissionMessage(c.Company, c.Amount, commission, c.UserEmail))
	return metrics.DispatchSent
}

// send renders and sends the notice. A panic in the adapter is reported as a
// dispatch error.
func (e *Engine) send(ctx context.Context, u *userentity.User, cred credential.Credential, c entity.Case) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDispatch, r)
		}
	}()
	to, law := e.dir.Recipient(c.Company, e.cfg.FallbackRecipient)
	if c.Company == directory.Other && !isBlank(c.Law) {
		law = c.Law
	}
	claimant := strings.TrimSpace(u.DisplayName)
	if claimant == "" {
		claimant = u.Email
	}
	n, err := RenderNotice(c, to, law, claimant)
	if err != nil {
		return fmt.Errorf("%w: render: %v", ErrDispatch, err)
	}
	sendCtx, cancel := withTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	if err := e.sender.Send(sendCtx, cred, n.To, n.Subject, n.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, text string) {
	nctx, cancel := withTimeout(ctx, e.cfg.NotifyTimeout)
	defer cancel()
	if err := e.sink.Notify(nctx, text); err != nil {
		e.logger.Warnw("operator notification", "err", err)
	}
}

// groupByUser keeps the first-seen order of users and of each user's cases.
func groupByUser(cases []entity.Case) [][]entity.Case {
	idx := make(map[string]int)
	var out [][]entity.Case
	for _, c := range cases {
		i, ok := idx[c.UserEmail]
		if !ok {
			i = len(out)
			idx[c.UserEmail] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], c)
	}
	return out
}
