package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"missioncontrol/api/internal/store"
)

type fakeStore struct {
	insertCreditFn  func(ctx context.Context, txn store.PointTransaction) (store.PointTransaction, store.CreditOutcome, error)
	auditBalancesFn func(ctx context.Context) ([]store.BalanceDrift, error)
	inserted        []store.PointTransaction
}

func (f *fakeStore) InsertCredit(ctx context.Context, txn store.PointTransaction) (store.PointTransaction, store.CreditOutcome, error) {
	f.inserted = append(f.inserted, txn)
	if f.insertCreditFn != nil {
		return f.insertCreditFn(ctx, txn)
	}
	return txn, store.CreditApplied, nil
}

func (f *fakeStore) TeamBalance(ctx context.Context, teamID string) (store.TeamBalance, error) {
	return store.TeamBalance{TeamID: teamID}, nil
}

func (f *fakeStore) OwnerBalances(ctx context.Context, teamID string) ([]store.OwnerBalance, error) {
	return nil, nil
}

func (f *fakeStore) ListTransactions(ctx context.Context, teamID string, limit int) ([]store.PointTransaction, error) {
	return nil, nil
}

func (f *fakeStore) AuditBalances(ctx context.Context) ([]store.BalanceDrift, error) {
	if f.auditBalancesFn != nil {
		return f.auditBalancesFn(ctx)
	}
	return nil, nil
}

func TestCreditValidation(t *testing.T) {
	l := New(&fakeStore{})
	cases := []Credit{
		{SourceID: "s", Points: 10},
		{TeamID: "t", Points: 10},
		{TeamID: "t", SourceID: "s", Points: 0},
	}
	for _, c := range cases {
		if _, _, err := l.Credit(context.Background(), c); !errors.Is(err, ErrInvalidCredit) {
			t.Fatalf("expected invalid credit for %+v, got %v", c, err)
		}
	}
}

func TestCreditPassesOutcomeThrough(t *testing.T) {
	fs := &fakeStore{
		insertCreditFn: func(ctx context.Context, txn store.PointTransaction) (store.PointTransaction, store.CreditOutcome, error) {
			return txn, store.AlreadyCredited, nil
		},
	}
	l := New(fs)
	_, outcome, err := l.Credit(context.Background(), Credit{TeamID: "t", PayeeID: "alex", SourceID: "s", Points: 5})
	if err != nil || outcome != store.AlreadyCredited {
		t.Fatalf("expected already credited, got %v %v", outcome, err)
	}
	if fs.inserted[0].PayeeID != "alex" || fs.inserted[0].Points != 5 {
		t.Fatalf("unexpected transaction %+v", fs.inserted[0])
	}
}

func TestCorrectUsesUniqueSourceAndAllowsNegative(t *testing.T) {
	fs := &fakeStore{}
	l := New(fs)
	if _, err := l.Correct(context.Background(), "t", -20, "Refund", "admin"); err != nil {
		t.Fatalf("correct: %v", err)
	}
	if _, err := l.Correct(context.Background(), "t", -20, "Refund", "admin"); err != nil {
		t.Fatalf("correct: %v", err)
	}
	if fs.inserted[0].SourceID == fs.inserted[1].SourceID {
		t.Fatalf("expected distinct correction sources")
	}
	if !strings.HasPrefix(fs.inserted[0].SourceID, "correction_") || fs.inserted[0].Points != -20 {
		t.Fatalf("unexpected correction %+v", fs.inserted[0])
	}
	if fs.inserted[0].Label != "Refund (by admin)" {
		t.Fatalf("unexpected label %q", fs.inserted[0].Label)
	}
	if _, err := l.Correct(context.Background(), "t", 0, "", ""); !errors.Is(err, ErrInvalidCredit) {
		t.Fatalf("expected zero correction rejected, got %v", err)
	}
}

func TestAuditFiltersConsistentTeams(t *testing.T) {
	fs := &fakeStore{
		auditBalancesFn: func(ctx context.Context) ([]store.BalanceDrift, error) {
			return []store.BalanceDrift{
				{TeamID: "ok", Recorded: 10, Computed: 10},
				{TeamID: "bad", Recorded: 12, Computed: 10},
			}, nil
		},
	}
	drift, err := New(fs).Audit(context.Background())
	if err != nil || len(drift) != 1 || drift[0].TeamID != "bad" {
		t.Fatalf("unexpected drift %+v %v", drift, err)
	}
}

func TestPointsFor(t *testing.T) {
	cases := []struct {
		entity store.Entity
		want   int
	}{
		{store.Entity{Points: 70, Priority: "critical"}, 70},
		{store.Entity{Priority: "critical"}, 120},
		{store.Entity{Priority: "high"}, 80},
		{store.Entity{Priority: "medium"}, 50},
		{store.Entity{Priority: "low"}, 30},
		{store.Entity{Priority: "whatever"}, DefaultPoints},
	}
	for _, c := range cases {
		if got := PointsFor(c.entity); got != c.want {
			t.Fatalf("PointsFor(%+v) = %d, want %d", c.entity, got, c.want)
		}
	}
}

func TestCompletionCredit(t *testing.T) {
	e := store.Entity{TeamID: "t", OwnerID: "alex", ExternalID: "T1", Name: "Fix bug", Priority: "high"}
	txn, ok := CompletionCredit(e)
	if !ok {
		t.Fatalf("expected credit")
	}
	if txn.SourceID != "T1" || txn.PayeeID != "alex" || txn.Points != 80 || txn.Label != "Completed: Fix bug" {
		t.Fatalf("unexpected credit %+v", txn)
	}
	e.OwnerID = ""
	if _, ok := CompletionCredit(e); ok {
		t.Fatalf("expected no credit without owner")
	}
}

func TestParsePriorityAndKind(t *testing.T) {
	if ParsePriority("🔥 Critical") != "critical" || ParsePriority("High") != "high" || ParsePriority("") != "medium" || ParsePriority("Low-ish") != "low" {
		t.Fatalf("unexpected priority parsing")
	}
	if ParseKind("Bug") != "bug" || ParseKind("Enhancement") != "feature" || ParseKind("chore") != "task" {
		t.Fatalf("unexpected kind parsing")
	}
}
