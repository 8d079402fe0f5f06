package litigation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/classifier"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/directory"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/entity"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/mailbox"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user"
)

const jane = "jane@example.com"

var janeAccounts = fakeAccounts{users: map[string]string{jane: "Jane Doe"}}

func newTestScanner(store CaseStore, accounts Accounts, src mailbox.Source, cls Classifier) *Scanner {
	return NewScanner(store, accounts, src, cls, directory.Default(), metrics.New(),
		ScanConfig{Query: "q", Limit: 20}, zap.NewNop().Sugar())
}

func threeMessages() (*fakeSource, fakeClassifier) {
	src := &fakeSource{msgs: []mailbox.Message{
		{ID: "1", Subject: "Newsletter", Snippet: "promo"},
		{ID: "2", Subject: "Colis Amazon", Snippet: "votre colis"},
		{ID: "3", Subject: "Retard Ouigo", Snippet: "train en retard"},
	}}
	cls := fakeClassifier{
		"Newsletter":   {Amount: "AUCUN", Law: "AUCUN"},
		"Colis Amazon": {Amount: "aucun montant", Law: "L216-1"},
		"Retard Ouigo": {Amount: "45€", Law: "Règlement 2021/782"},
	}
	return src, cls
}

func TestScanThreeMessages(t *testing.T) {
	store := newMemStore()
	src, cls := threeMessages()

	report, err := newTestScanner(store, janeAccounts, src, cls).Scan(context.Background(), "Jane@Example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, report.NewCaseCount)
	assert.Equal(t, int64(45), report.TotalAmount)
	assert.False(t, report.Clean)
	require.Len(t, report.Cases, 1)
	c := report.Cases[0]
	assert.Equal(t, "ouigo", c.Company)
	assert.Equal(t, "45€", c.Amount)
	assert.Equal(t, "Règlement 2021/782", c.Law)
	assert.Equal(t, entity.StatusDetected, c.Status)
	assert.Equal(t, jane, c.UserEmail)
}

func TestScanIsIdempotent(t *testing.T) {
	store := newMemStore()
	src, cls := threeMessages()
	s := newTestScanner(store, janeAccounts, src, cls)

	first, err := s.Scan(context.Background(), jane)
	require.NoError(t, err)
	second, err := s.Scan(context.Background(), jane)
	require.NoError(t, err)

	assert.Equal(t, first.NewCaseCount, second.NewCaseCount)
	all, _ := store.ListByUser(context.Background(), jane)
	require.Len(t, all, 1)
	assert.Equal(t, second.Cases[0].ID, all[0].ID)
	assert.Equal(t, first.Cases[0].Subject, all[0].Subject)
}

func TestScanDoesNotRecreateResolvedCases(t *testing.T) {
	for _, status := range []entity.Status{entity.StatusSent, entity.StatusPaid} {
		t.Run(string(status), func(t *testing.T) {
			store := newMemStore(entity.Case{UserEmail: jane, Company: "ouigo", Amount: "45€", Subject: "Retard Ouigo", Status: status})
			src, cls := threeMessages()

			report, err := newTestScanner(store, janeAccounts, src, cls).Scan(context.Background(), jane)
			require.NoError(t, err)
			assert.Equal(t, 0, report.NewCaseCount)
			assert.True(t, report.Clean)

			all, _ := store.ListByUser(context.Background(), jane)
			assert.Len(t, all, 1)
		})
	}
}

func TestScanRecreatesAfterError(t *testing.T) {
	store := newMemStore(entity.Case{UserEmail: jane, Company: "ouigo", Amount: "45€", Subject: "Retard Ouigo", Status: entity.StatusError})
	src, cls := threeMessages()

	report, err := newTestScanner(store, janeAccounts, src, cls).Scan(context.Background(), jane)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewCaseCount)
}

func TestScanDiscardsZeroAmounts(t *testing.T) {
	store := newMemStore()
	src := &fakeSource{msgs: []mailbox.Message{
		{ID: "1", Subject: "a"}, {ID: "2", Subject: "b"}, {ID: "3", Subject: "c"},
	}}
	cls := fakeClassifier{
		"a": {Amount: "0€", Law: "x"},
		"b": {Amount: "000", Law: "x"},
		"c": {Amount: "à déterminer", Law: "x"},
	}
	report, err := newTestScanner(store, janeAccounts, src, cls).Scan(context.Background(), jane)
	require.NoError(t, err)
	assert.True(t, report.Clean)
	all, _ := store.ListByUser(context.Background(), jane)
	assert.Empty(t, all)
}

func TestScanTicketOverride(t *testing.T) {
	for name, res := range map[string]classifier.Result{
		"classifier disagrees": {Amount: "250€", Law: "Règlement (CE) n° 261/2004"},
		"classifier no case":   classifier.NoCaseResult,
	} {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			src := &fakeSource{msgs: []mailbox.Message{{ID: "1", Subject: "Vol KL2273 annulé", Snippet: "air france partenaire"}}}
			cls := fakeClassifier{"Vol KL2273 annulé": res}

			report, err := newTestScanner(store, janeAccounts, src, cls).Scan(context.Background(), jane)
			require.NoError(t, err)
			require.Len(t, report.Cases, 1)
			assert.Equal(t, "klm", report.Cases[0].Company)
			assert.Equal(t, "600€", report.Cases[0].Amount)
			assert.Equal(t, int64(600), report.TotalAmount)
			assert.NotEmpty(t, report.Cases[0].Law)
		})
	}
}

func TestScanResetsDetectedCases(t *testing.T) {
	store := newMemStore(
		entity.Case{UserEmail: jane, Subject: "stale", Amount: "10€", Status: entity.StatusDetected},
		entity.Case{UserEmail: "bob@example.com", Subject: "other user", Amount: "10€", Status: entity.StatusDetected},
	)
	_, err := newTestScanner(store, janeAccounts, &fakeSource{}, fakeClassifier{}).Scan(context.Background(), jane)
	require.NoError(t, err)

	mine, _ := store.ListByUser(context.Background(), jane)
	assert.Empty(t, mine)
	bobs, _ := store.ListByUser(context.Background(), "bob@example.com")
	assert.Len(t, bobs, 1)
}

func TestScanFetchesStubsAndSkipsFailures(t *testing.T) {
	store := newMemStore()
	src := &fakeSource{
		msgs: []mailbox.Message{{ID: "s1"}, {ID: "missing"}},
		full: map[string]mailbox.Message{"s1": {ID: "s1", Subject: "Commande Fnac", Snippet: "non livré"}},
	}
	cls := fakeClassifier{"Commande Fnac": {Amount: "89€", Law: "L216-1"}}

	report, err := newTestScanner(store, janeAccounts, src, cls).Scan(context.Background(), jane)
	require.NoError(t, err)
	require.Len(t, report.Cases, 1)
	assert.Equal(t, "fnac", report.Cases[0].Company)
}

func TestScanCredentialFailureChangesNothing(t *testing.T) {
	stale := entity.Case{UserEmail: jane, Subject: "stale", Amount: "10€", Status: entity.StatusDetected}
	for name, authErr := range map[string]error{
		"refresh":       credential.ErrRefresh,
		"no credential": user.ErrNoCredential,
	} {
		t.Run(name, func(t *testing.T) {
			store := newMemStore(stale)
			accounts := fakeAccounts{errs: map[string]error{jane: authErr}}
			src, cls := threeMessages()

			_, err := newTestScanner(store, accounts, src, cls).Scan(context.Background(), jane)
			assert.ErrorIs(t, err, ErrCredential)
			all, _ := store.ListByUser(context.Background(), jane)
			assert.Len(t, all, 1)
		})
	}

	_, err := newTestScanner(newMemStore(), fakeAccounts{}, &fakeSource{}, fakeClassifier{}).Scan(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrCredential)
}

func TestScanSearchFailure(t *testing.T) {
	store := newMemStore(entity.Case{UserEmail: jane, Subject: "stale", Amount: "10€", Status: entity.StatusDetected})
	src := &fakeSource{searchErr: errors.New("503")}

	_, err := newTestScanner(store, janeAccounts, src, fakeClassifier{}).Scan(context.Background(), jane)
	assert.ErrorIs(t, err, ErrMailbox)
	all, _ := store.ListByUser(context.Background(), jane)
	assert.Len(t, all, 1)
}

func TestScanDedupFailureSkipsMessage(t *testing.T) {
	store := newMemStore()
	store.failOn = "dedup"
	src, cls := threeMessages()

	report, err := newTestScanner(store, janeAccounts, src, cls).Scan(context.Background(), jane)
	require.NoError(t, err)
	assert.True(t, report.Clean)
}

func TestScanStoreFailure(t *testing.T) {
	store := newMemStore()
	store.failOn = "replace"
	src, cls := threeMessages()

	_, err := newTestScanner(store, janeAccounts, src, cls).Scan(context.Background(), jane)
	assert.ErrorIs(t, err, errStore)
	assert.NotErrorIs(t, err, ErrCredential)
}

func TestScanUsesDirectoryLawForUnknownCompany(t *testing.T) {
	store := newMemStore()
	src := &fakeSource{msgs: []mailbox.Message{{ID: "1", Subject: "Remboursement boutique", Snippet: "rien"}}}
	cls := fakeClassifier{"Remboursement boutique": {Amount: "30€", Law: ""}}

	report, err := newTestScanner(store, janeAccounts, src, cls).Scan(context.Background(), jane)
	require.NoError(t, err)
	require.Len(t, report.Cases, 1)
	assert.Equal(t, directory.Other, report.Cases[0].Company)
	assert.Equal(t, directory.GenericLaw, report.Cases[0].Law)
}
