// Package ledger credits points exactly once per (source, payee) and keeps
// team balances equal to the sum of their transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"missioncontrol/api/internal/store"
	"missioncontrol/api/internal/util"
)

// DefaultPoints is awarded when neither the entity nor its priority says otherwise.
const DefaultPoints = 30

var priorityPoints = map[string]int{
	"critical": 120,
	"high":     80,
	"medium":   50,
	"low":      30,
}

var ErrInvalidCredit = errors.New("invalid credit")

type ledgerStore interface {
	InsertCredit(ctx context.Context, txn store.PointTransaction) (store.PointTransaction, store.CreditOutcome, error)
	TeamBalance(ctx context.Context, teamID string) (store.TeamBalance, error)
	OwnerBalances(ctx context.Context, teamID string) ([]store.OwnerBalance, error)
	ListTransactions(ctx context.Context, teamID string, limit int) ([]store.PointTransaction, error)
	AuditBalances(ctx context.Context) ([]store.BalanceDrift, error)
}

type Ledger struct {
	store ledgerStore
}

func New(s ledgerStore) *Ledger {
	return &Ledger{store: s}
}

// Credit describes a requested point award.
type Credit struct {
	TeamID   string
	PayeeID  string
	SourceID string
	Label    string
	Points   int
}

func (c Credit) validate() error {
	switch {
	case strings.TrimSpace(c.TeamID) == "":
		return fmt.Errorf("%w: teamId is required", ErrInvalidCredit)
	case strings.TrimSpace(c.SourceID) == "":
		return fmt.Errorf("%w: sourceId is required", ErrInvalidCredit)
	case c.Points <= 0:
		return fmt.Errorf("%w: points must be positive", ErrInvalidCredit)
	}
	return nil
}

func (c Credit) transaction() store.PointTransaction {
	return store.PointTransaction{
		TeamID:   c.TeamID,
		PayeeID:  c.PayeeID,
		SourceID: c.SourceID,
		Label:    c.Label,
		Points:   c.Points,
	}
}

// Credit applies c unless (SourceID, PayeeID) was already credited, in which
// case it reports AlreadyCredited and changes nothing.
func (l *Ledger) Credit(ctx context.Context, c Credit) (store.PointTransaction, store.CreditOutcome, error) {
	if err := c.validate(); err != nil {
		return store.PointTransaction{}, store.CreditApplied, err
	}
	return l.store.InsertCredit(ctx, c.transaction())
}

// Correct records a manual balance adjustment. It is the only path that may
// lower a balance; delta must be non-zero.
func (l *Ledger) Correct(ctx context.Context, teamID string, delta int, label, actor string) (store.PointTransaction, error) {
	if strings.TrimSpace(teamID) == "" {
		return store.PointTransaction{}, fmt.Errorf("%w: teamId is required", ErrInvalidCredit)
	}
	if delta == 0 {
		return store.PointTransaction{}, fmt.Errorf("%w: correction must be non-zero", ErrInvalidCredit)
	}
	if label == "" {
		label = "Correction"
	}
	if actor != "" {
		label = fmt.Sprintf("%s (by %s)", label, actor)
	}
	txn, _, err := l.store.InsertCredit(ctx, store.PointTransaction{
		TeamID:   teamID,
		SourceID: util.NewID("correction"),
		Label:    label,
		Points:   delta,
	})
	return txn, err
}

func (l *Ledger) Balance(ctx context.Context, teamID string) (store.TeamBalance, error) {
	return l.store.TeamBalance(ctx, teamID)
}

func (l *Ledger) OwnerBalances(ctx context.Context, teamID string) ([]store.OwnerBalance, error) {
	return l.store.OwnerBalances(ctx, teamID)
}

func (l *Ledger) Transactions(ctx context.Context, teamID string, limit int) ([]store.PointTransaction, error) {
	return l.store.ListTransactions(ctx, teamID, limit)
}

// Audit returns only the teams whose balance has drifted from their transactions.
func (l *Ledger) Audit(ctx context.Context) ([]store.BalanceDrift, error) {
	all, err := l.store.AuditBalances(ctx)
	if err != nil {
		return nil, err
	}
	drifted := make([]store.BalanceDrift, 0)
	for _, d := range all {
		if !d.Consistent() {
			drifted = append(drifted, d)
		}
	}
	return drifted, nil
}

// PointsFor returns the award for completing e.
func PointsFor(e store.Entity) int {
	if e.Points > 0 {
		return e.Points
	}
	if p, ok := priorityPoints[strings.ToLower(e.Priority)]; ok {
		return p
	}
	return DefaultPoints
}

// CompletionCredit builds the credit awarded to e's owner on completion. The
// external id is the source, so a replayed completion can never pay twice.
func CompletionCredit(e store.Entity) (store.PointTransaction, bool) {
	if e.OwnerID == "" || e.ExternalID == "" {
		return store.PointTransaction{}, false
	}
	return store.PointTransaction{
		TeamID:   e.TeamID,
		PayeeID:  e.OwnerID,
		SourceID: e.ExternalID,
		Label:    "Completed: " + e.Name,
		Points:   PointsFor(e),
	}, true
}

// ParsePriority maps free-form tracker values onto critical/high/medium/low.
func ParsePriority(raw string) string {
	v := strings.ToLower(raw)
	switch {
	case strings.Contains(v, "critical") || strings.Contains(v, "urgent"):
		return "critical"
	case strings.Contains(v, "high"):
		return "high"
	case strings.Contains(v, "low"):
		return "low"
	default:
		return "medium"
	}
}

// ParseKind maps free-form tracker values onto bug/feature/task.
func ParseKind(raw string) string {
	v := strings.ToLower(raw)
	switch {
	case strings.Contains(v, "bug"):
		return "bug"
	case strings.Contains(v, "feature") || strings.Contains(v, "enhancement"):
		return "feature"
	default:
		return "task"
	}
}
