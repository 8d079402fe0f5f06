package litigation

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/classifier"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/entity"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/mailbox"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-litigation-go/internal/user/entity"
)

// memStore is an in-memory CaseStore with the same conditional semantics as
// the Postgres repo.
type memStore struct {
	mu     sync.Mutex
	cases  map[int64]entity.Case
	nextID int64
	failOn string
}

func newMemStore(seed ...entity.Case) *memStore {
	s := &memStore{cases: make(map[int64]entity.Case)}
	for _, c := range seed {
		s.nextID++
		if c.ID == 0 {
			c.ID = s.nextID
		}
		s.cases[c.ID] = c
	}
	return s
}

var errStore = errors.New("store down")

func (s *memStore) sorted(keep func(entity.Case) bool) []entity.Case {
	out := []entity.Case{}
	for _, c := range s.cases {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) ListByUser(_ context.Context, email string) ([]entity.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(c entity.Case) bool { return c.UserEmail == email }), nil
}

func (s *memStore) ListByStatus(_ context.Context, status entity.Status, email string) ([]entity.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "list" {
		return nil, errStore
	}
	return s.sorted(func(c entity.Case) bool {
		return c.Status == status && (email == "" || c.UserEmail == email)
	}), nil
}

func (s *memStore) HasResolvedSubject(_ context.Context, email, subject string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "dedup" {
		return false, errStore
	}
	for _, c := range s.cases {
		if c.UserEmail == email && c.Subject == subject && c.Status.Resolved() {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ReplaceDetected(_ context.Context, email string, cases []entity.Case) ([]entity.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "replace" {
		return nil, errStore
	}
	for id, c := range s.cases {
		if c.UserEmail == email && c.Status == entity.StatusDetected {
			delete(s.cases, id)
		}
	}
	out := []entity.Case{}
	for _, c := range cases {
		blocked := false
		for _, old := range s.cases {
			if old.UserEmail == email && old.Subject == c.Subject && old.Status.Resolved() {
				blocked = true
			}
		}
		if blocked {
			continue
		}
		s.nextID++
		c.ID = s.nextID
		c.UserEmail = email
		c.Status = entity.StatusDetected
		c.CreatedAt = time.Now()
		s.cases[c.ID] = c
		out = append(out, c)
	}
	return out, nil
}

func (s *memStore) Transition(_ context.Context, id int64, from, to entity.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	s.cases[id] = c
	return true, nil
}

func (s *memStore) Get(_ context.Context, id int64) (*entity.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s *memStore) status(id int64) entity.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases[id].Status
}

// fakeAccounts authorizes the listed users; others get the mapped error.
type fakeAccounts struct {
	users map[string]string
	errs  map[string]error
}

func (a fakeAccounts) Authorize(_ context.Context, email string) (*userentity.User, credential.Credential, error) {
	if err, ok := a.errs[email]; ok {
		return nil, credential.Credential{}, err
	}
	name, ok := a.users[email]
	if !ok {
		return nil, credential.Credential{}, user.ErrUserNotFound
	}
	return &userentity.User{Email: email, DisplayName: name}, credential.Credential{Token: "tok-" + email}, nil
}

type fakeSource struct {
	msgs      []mailbox.Message
	full      map[string]mailbox.Message
	searchErr error
}

func (f *fakeSource) Search(context.Context, credential.Credential, string, int64) ([]mailbox.Message, error) {
	return f.msgs, f.searchErr
}

func (f *fakeSource) Fetch(_ context.Context, _ credential.Credential, id string) (mailbox.Message, error) {
	m, ok := f.full[id]
	if !ok {
		return mailbox.Message{}, errors.New("not found")
	}
	return m, nil
}

// fakeClassifier answers by subject; unknown subjects are not cases.
type fakeClassifier map[string]classifier.Result

func (f fakeClassifier) Classify(_ context.Context, subject, _ string) classifier.Result {
	if r, ok := f[subject]; ok {
		return r
	}
	return classifier.NoCaseResult
}

type sent struct {
	to, subject, body string
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sent
	fail  map[string]bool
	delay time.Duration
}

func (f *fakeSender) Send(ctx context.Context, _ credential.Credential, to, subject, body string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("smtp refused")
	}
	f.sent = append(f.sent, sent{to: to, subject: subject, body: body})
	return nil
}

type fakeSink struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSink) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}
