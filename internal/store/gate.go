package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Admission is the idempotency gate verdict for an inbound event.
type Admission int

const (
	FirstSeen Admission = iota
	AlreadyProcessed
)

func (a Admission) String() string {
	if a == AlreadyProcessed {
		return "already_processed"
	}
	return "first_seen"
}

// CreditOutcome is the gate verdict for a (source, payee) credit.
type CreditOutcome int

const (
	CreditApplied CreditOutcome = iota
	AlreadyCredited
)

func (c CreditOutcome) String() string {
	if c == AlreadyCredited {
		return "already_credited"
	}
	return "applied"
}

// claimEvent records externalID as processed inside tx. Exactly one
// concurrent caller for a given id observes FirstSeen.
func (s *SQLStore) claimEvent(ctx context.Context, tx *sql.Tx, externalID, kind string) (Admission, error) {
	res, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO admitted_events (external_id, kind, admitted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO NOTHING
	`), externalID, kind, time.Now().UTC())
	if err != nil {
		return FirstSeen, fmt.Errorf("claim event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return FirstSeen, fmt.Errorf("claim event rows: %w", err)
	}
	if affected == 0 {
		return AlreadyProcessed, nil
	}
	return FirstSeen, nil
}

// claimCredit inserts the transaction row unless (source, payee) already exists.
func (s *SQLStore) claimCredit(ctx context.Context, tx *sql.Tx, txn PointTransaction) (CreditOutcome, error) {
	res, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO point_transactions (id, team_id, payee_key, source_id, label, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id, payee_key) DO NOTHING
	`), txn.ID, txn.TeamID, txn.PayeeID, txn.SourceID, txn.Label, txn.Points, txn.CreatedAt)
	if err != nil {
		return CreditApplied, fmt.Errorf("claim credit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return CreditApplied, fmt.Errorf("claim credit rows: %w", err)
	}
	if affected == 0 {
		return AlreadyCredited, nil
	}
	return CreditApplied, nil
}
