package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"missioncontrol/api/internal/util"
)

// InsertCredit applies txn unless its (source, payee) pair was already credited.
func (s *SQLStore) InsertCredit(ctx context.Context, txn PointTransaction) (PointTransaction, CreditOutcome, error) {
	var outcome CreditOutcome
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		txn, outcome, err = s.creditTx(ctx, tx, txn)
		return err
	})
	if err != nil {
		return PointTransaction{}, CreditApplied, err
	}
	return txn, outcome, nil
}

// creditTx is the single write path into the ledger: the transaction row and
// both balances move together or not at all.
func (s *SQLStore) creditTx(ctx context.Context, tx *sql.Tx, txn PointTransaction) (PointTransaction, CreditOutcome, error) {
	if txn.ID == "" {
		txn.ID = util.NewID("ptx")
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	outcome, err := s.claimCredit(ctx, tx, txn)
	if err != nil || outcome == AlreadyCredited {
		return txn, outcome, err
	}

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO team_balances (team_id, total_points, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id) DO UPDATE
		SET total_points = team_balances.total_points + excluded.total_points,
			updated_at = excluded.updated_at
	`), txn.TeamID, int64(txn.Points), txn.CreatedAt); err != nil {
		return txn, CreditApplied, fmt.Errorf("update team balance: %w", err)
	}

	if txn.PayeeID != "" {
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO owner_balances (team_id, owner_id, personal_points, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (team_id, owner_id) DO UPDATE
			SET personal_points = owner_balances.personal_points + excluded.personal_points,
				updated_at = excluded.updated_at
		`), txn.TeamID, txn.PayeeID, int64(txn.Points), txn.CreatedAt); err != nil {
			return txn, CreditApplied, fmt.Errorf("update owner balance: %w", err)
		}
	}
	return txn, CreditApplied, nil
}

// TeamBalance returns a zero balance for teams that were never credited.
func (s *SQLStore) TeamBalance(ctx context.Context, teamID string) (TeamBalance, error) {
	balance := TeamBalance{TeamID: teamID}
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT total_points, updated_at FROM team_balances WHERE team_id = $1
	`), teamID).Scan(&balance.TotalPoints, &balance.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return balance, nil
	}
	if err != nil {
		return TeamBalance{}, fmt.Errorf("get team balance: %w", err)
	}
	return balance, nil
}

func (s *SQLStore) OwnerBalances(ctx context.Context, teamID string) ([]OwnerBalance, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT team_id, owner_id, personal_points FROM owner_balances
		WHERE team_id = $1 ORDER BY personal_points DESC, owner_id ASC
	`), teamID)
	if err != nil {
		return nil, fmt.Errorf("list owner balances: %w", err)
	}
	defer rows.Close()

	items := make([]OwnerBalance, 0)
	for rows.Next() {
		var b OwnerBalance
		if err := rows.Scan(&b.TeamID, &b.OwnerID, &b.PersonalPoints); err != nil {
			return nil, fmt.Errorf("scan owner balance: %w", err)
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (s *SQLStore) ListTransactions(ctx context.Context, teamID string, limit int) ([]PointTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, team_id, payee_key, source_id, label, points, created_at
		FROM point_transactions WHERE team_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2
	`), teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := make([]PointTransaction, 0)
	for rows.Next() {
		var t PointTransaction
		if err := rows.Scan(&t.ID, &t.TeamID, &t.PayeeID, &t.SourceID, &t.Label, &t.Points, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// AuditBalances compares the recorded balance of every team that has a
// balance row or a transaction with the sum of its transactions. A missing
// balance row counts as zero.
func (s *SQLStore) AuditBalances(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT teams.team_id,
			COALESCE(b.total_points, 0),
			COALESCE((SELECT SUM(t.points) FROM point_transactions t WHERE t.team_id = teams.team_id), 0)
		FROM (
			SELECT team_id FROM team_balances
			UNION
			SELECT team_id FROM point_transactions
		) teams
		LEFT JOIN team_balances b ON b.team_id = teams.team_id
		ORDER BY teams.team_id
	`)
	if err != nil {
		return nil, fmt.Errorf("audit balances: %w", err)
	}
	defer rows.Close()

	items := make([]BalanceDrift, 0)
	for rows.Next() {
		var d BalanceDrift
		if err := rows.Scan(&d.TeamID, &d.Recorded, &d.Computed); err != nil {
			return nil, fmt.Errorf("scan balance audit: %w", err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
