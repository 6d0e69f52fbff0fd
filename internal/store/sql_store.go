package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"missioncontrol/api/internal/util"
)

type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) q(query string) string {
	return rebind(s.dialect, query)
}

func (s *SQLStore) forUpdate() string {
	if s.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (s *SQLStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockTeamPlacement serializes placement within a team on Postgres. SQLite
// already serializes writers on its single connection.
func (s *SQLStore) lockTeamPlacement(ctx context.Context, tx *sql.Tx, teamID string) error {
	if s.dialect != DialectPostgres {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "placement:"+teamID); err != nil {
		return fmt.Errorf("lock placement: %w", err)
	}
	return nil
}

const entityColumns = `id, team_id, external_id, owner_id, name, description, kind, priority, tracker_status,
	pos_x, pos_y, points, completed, seen_by, revision, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (Entity, error) {
	var (
		e      Entity
		seenBy string
	)
	err := row.Scan(&e.ID, &e.TeamID, &e.ExternalID, &e.OwnerID, &e.Name, &e.Description, &e.Kind, &e.Priority,
		&e.TrackerStatus, &e.Position.X, &e.Position.Y, &e.Points, &e.Completed, &seenBy, &e.Revision,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Entity{}, err
	}
	e.SeenBy = map[string]bool{}
	if seenBy != "" {
		if err := json.Unmarshal([]byte(seenBy), &e.SeenBy); err != nil {
			return Entity{}, fmt.Errorf("decode seen_by for %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func encodeSeenBy(seenBy map[string]bool) string {
	if len(seenBy) == 0 {
		return "{}"
	}
	raw, _ := json.Marshal(seenBy)
	return string(raw)
}

func (s *SQLStore) entityTx(ctx context.Context, tx *sql.Tx, entityID string, lock bool) (Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`
	if lock {
		query += s.forUpdate()
	}
	e, err := scanEntity(tx.QueryRowContext(ctx, s.q(query), entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

func (s *SQLStore) occupantsTx(ctx context.Context, tx *sql.Tx, teamID, excludeID string) ([]Occupant, error) {
	rows, err := tx.QueryContext(ctx, s.q(`
		SELECT id, owner_id, pos_x, pos_y FROM entities
		WHERE team_id = $1 AND id <> $2
		ORDER BY created_at ASC, id ASC
	`), teamID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list occupants: %w", err)
	}
	defer rows.Close()

	items := make([]Occupant, 0)
	for rows.Next() {
		var o Occupant
		if err := rows.Scan(&o.EntityID, &o.OwnerID, &o.Point.X, &o.Point.Y); err != nil {
			return nil, fmt.Errorf("scan occupant: %w", err)
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// AdmitEntity passes the entity's external id through the idempotency gate and,
// when first seen, places and inserts it in the same transaction. A duplicate
// returns AlreadyProcessed with the existing entity, or a zero Entity if it has
// since been deleted.
func (s *SQLStore) AdmitEntity(ctx context.Context, e Entity, place PlaceFunc) (Entity, Admission, error) {
	var (
		out       Entity
		admission Admission
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		admission, err = s.claimEvent(ctx, tx, e.ExternalID, "create")
		if err != nil {
			return err
		}
		if admission == AlreadyProcessed {
			existing, err := s.entityByExternalIDTx(ctx, tx, e.ExternalID)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			out = existing
			return err
		}

		if err := s.lockTeamPlacement(ctx, tx, e.TeamID); err != nil {
			return err
		}
		occupants, err := s.occupantsTx(ctx, tx, e.TeamID, "")
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if e.ID == "" {
			e.ID = util.NewID("ent")
		}
		e.Position = place(occupants)
		e.Completed = false
		e.SeenBy = map[string]bool{}
		e.Revision = 1
		e.CreatedAt = now
		e.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO entities (id, team_id, external_id, owner_id, name, description, kind, priority,
				tracker_status, pos_x, pos_y, points, completed, seen_by, revision, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`), e.ID, e.TeamID, e.ExternalID, e.OwnerID, e.Name, e.Description, e.Kind, e.Priority,
			e.TrackerStatus, e.Position.X, e.Position.Y, e.Points, e.Completed, encodeSeenBy(e.SeenBy),
			e.Revision, e.CreatedAt, e.UpdatedAt); err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
		out = e
		return nil
	})
	if err != nil {
		return Entity{}, FirstSeen, err
	}
	return out, admission, nil
}

// ReassignEntity moves a non-completed entity to newOwner, placing it with
// place, and clears its seen-by set.
func (s *SQLStore) ReassignEntity(ctx context.Context, entityID, newOwner string, place PlaceFunc) (Entity, Entity, error) {
	var before, after Entity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		before, err = s.entityTx(ctx, tx, entityID, true)
		if err != nil {
			return err
		}
		if before.Completed {
			return ErrCompleted
		}
		if err := s.lockTeamPlacement(ctx, tx, before.TeamID); err != nil {
			return err
		}
		occupants, err := s.occupantsTx(ctx, tx, before.TeamID, before.ID)
		if err != nil {
			return err
		}

		after = before
		after.OwnerID = newOwner
		after.Position = place(occupants)
		after.SeenBy = map[string]bool{}
		after.Revision = before.Revision + 1
		after.UpdatedAt = time.Now().UTC()

		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE entities
			SET owner_id = $1, pos_x = $2, pos_y = $3, seen_by = $4, revision = $5, updated_at = $6
			WHERE id = $7 AND completed = $8
		`), after.OwnerID, after.Position.X, after.Position.Y, encodeSeenBy(after.SeenBy), after.Revision,
			after.UpdatedAt, after.ID, false)
		if err != nil {
			return fmt.Errorf("reassign entity: %w", err)
		}
		return requireAffected(res, ErrCompleted)
	})
	if err != nil {
		return Entity{}, Entity{}, err
	}
	return before, after, nil
}

// CompleteEntity marks an assigned entity completed and, in the same
// transaction, applies the credit returned by credit (if any). Completing an
// already completed entity is a no-op.
func (s *SQLStore) CompleteEntity(ctx context.Context, entityID string, credit func(Entity) (PointTransaction, bool)) (Entity, CompleteResult, error) {
	var (
		out    Entity
		result CompleteResult
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := s.entityTx(ctx, tx, entityID, true)
		if err != nil {
			return err
		}
		if e.Completed {
			out = e
			result.AlreadyCompleted = true
			return nil
		}
		if e.OwnerID == "" {
			return ErrUnassigned
		}

		e.Completed = true
		e.Revision++
		e.UpdatedAt = time.Now().UTC()
		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE entities SET completed = $1, revision = $2, updated_at = $3
			WHERE id = $4 AND completed = $5
		`), true, e.Revision, e.UpdatedAt, e.ID, false)
		if err != nil {
			return fmt.Errorf("complete entity: %w", err)
		}
		if err := requireAffected(res, ErrCompleted); err != nil {
			return err
		}
		out = e

		if credit == nil {
			return nil
		}
		txn, ok := credit(e)
		if !ok {
			return nil
		}
		txn, outcome, err := s.creditTx(ctx, tx, txn)
		if err != nil {
			return err
		}
		result.Credited = true
		result.Credit = outcome
		result.Transaction = txn
		return nil
	})
	if err != nil {
		return Entity{}, CompleteResult{}, err
	}
	return out, result, nil
}

// DeleteEntity removes an entity. Completed entities require privileged.
// The returned entity carries the revision of the deletion.
func (s *SQLStore) DeleteEntity(ctx context.Context, entityID string, privileged bool) (Entity, error) {
	var out Entity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := s.entityTx(ctx, tx, entityID, true)
		if err != nil {
			return err
		}
		if e.Completed && !privileged {
			return ErrCompleted
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM entities WHERE id = $1`), e.ID); err != nil {
			return fmt.Errorf("delete entity: %w", err)
		}
		e.Revision++
		e.UpdatedAt = time.Now().UTC()
		out = e
		return nil
	})
	if err != nil {
		return Entity{}, err
	}
	return out, nil
}

// UpdateEntity applies patch to a non-completed entity.
func (s *SQLStore) UpdateEntity(ctx context.Context, entityID string, patch EntityPatch) (Entity, error) {
	var out Entity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := s.entityTx(ctx, tx, entityID, true)
		if err != nil {
			return err
		}
		if e.Completed {
			return ErrCompleted
		}
		if patch.Empty() {
			out = e
			return nil
		}

		var (
			sets []string
			args []any
		)
		set := func(column string, value any) {
			args = append(args, value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}
		if patch.Name != nil {
			e.Name = *patch.Name
			set("name", e.Name)
		}
		if patch.Description != nil {
			e.Description = *patch.Description
			set("description", e.Description)
		}
		if patch.Kind != nil {
			e.Kind = *patch.Kind
			set("kind", e.Kind)
		}
		if patch.Priority != nil {
			e.Priority = *patch.Priority
			set("priority", e.Priority)
		}
		if patch.Points != nil {
			e.Points = *patch.Points
			set("points", e.Points)
		}
		if patch.TrackerStatus != nil {
			e.TrackerStatus = *patch.TrackerStatus
			set("tracker_status", e.TrackerStatus)
		}
		e.Revision++
		e.UpdatedAt = time.Now().UTC()
		set("revision", e.Revision)
		set("updated_at", e.UpdatedAt)
		args = append(args, e.ID)
		idParam := len(args)
		args = append(args, false)

		query := fmt.Sprintf(`UPDATE entities SET %s WHERE id = $%d AND completed = $%d`,
			strings.Join(sets, ", "), idParam, idParam+1)
		res, err := tx.ExecContext(ctx, s.q(query), args...)
		if err != nil {
			return fmt.Errorf("update entity: %w", err)
		}
		if err := requireAffected(res, ErrCompleted); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return Entity{}, err
	}
	return out, nil
}

// MarkSeen records that viewer has seen the entity. Repeated marks do not
// bump the revision.
func (s *SQLStore) MarkSeen(ctx context.Context, entityID, viewer string) (Entity, bool, error) {
	var (
		out     Entity
		changed bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := s.entityTx(ctx, tx, entityID, true)
		if err != nil {
			return err
		}
		if e.Completed {
			return ErrCompleted
		}
		if e.SeenBy[viewer] {
			out = e
			return nil
		}
		e.SeenBy[viewer] = true
		e.Revision++
		e.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx, s.q(`
			UPDATE entities SET seen_by = $1, revision = $2, updated_at = $3 WHERE id = $4
		`), encodeSeenBy(e.SeenBy), e.Revision, e.UpdatedAt, e.ID); err != nil {
			return fmt.Errorf("mark seen: %w", err)
		}
		out = e
		changed = true
		return nil
	})
	if err != nil {
		return Entity{}, false, err
	}
	return out, changed, nil
}

func (s *SQLStore) GetEntity(ctx context.Context, entityID string) (Entity, error) {
	e, err := scanEntity(s.db.QueryRowContext(ctx, s.q(`SELECT `+entityColumns+` FROM entities WHERE id = $1`), entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

func (s *SQLStore) GetEntityByExternalID(ctx context.Context, externalID string) (Entity, error) {
	e, err := scanEntity(s.db.QueryRowContext(ctx, s.q(`SELECT `+entityColumns+` FROM entities WHERE external_id = $1`), externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, fmt.Errorf("get entity by external id: %w", err)
	}
	return e, nil
}

func (s *SQLStore) entityByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID string) (Entity, error) {
	e, err := scanEntity(tx.QueryRowContext(ctx, s.q(`SELECT `+entityColumns+` FROM entities WHERE external_id = $1`), externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, fmt.Errorf("get entity by external id: %w", err)
	}
	return e, nil
}

func (s *SQLStore) ListEntities(ctx context.Context, teamID string) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+entityColumns+` FROM entities WHERE team_id = $1 ORDER BY created_at ASC, id ASC
	`), teamID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()
	return collectEntities(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchEntities returns one page of q's matches, newest first, and the total
// number of matches. LIKE wildcards in q.Text match literally.
func (s *SQLStore) SearchEntities(ctx context.Context, q EntityQuery) ([]Entity, int, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(q.Text))) + "%"
	args := []any{q.TeamID, pattern, pattern}
	where := `team_id = $1 AND (LOWER(name) LIKE $2 ESCAPE '\' OR LOWER(description) LIKE $3 ESCAPE '\')`
	if q.OwnerID != "" {
		args = append(args, q.OwnerID)
		where += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if q.OnlyOpen {
		args = append(args, false)
		where += fmt.Sprintf(" AND completed = $%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM entities WHERE `+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entity matches: %w", err)
	}

	page := append(args, q.Limit, q.Offset)
	rows, err := s.db.QueryContext(ctx, s.q(fmt.Sprintf(`
		SELECT `+entityColumns+` FROM entities
		WHERE %s
		ORDER BY updated_at DESC, id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)), page...)
	if err != nil {
		return nil, 0, fmt.Errorf("search entities: %w", err)
	}
	defer rows.Close()
	items, err := collectEntities(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collectEntities(rows *sql.Rows) ([]Entity, error) {
	items := make([]Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func requireAffected(res sql.Result, otherwise error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return otherwise
	}
	return nil
}

// SeenByList returns the sorted viewers of e.
func SeenByList(e Entity) []string {
	viewers := make([]string, 0, len(e.SeenBy))
	for v, ok := range e.SeenBy {
		if ok {
			viewers = append(viewers, v)
		}
	}
	sort.Strings(viewers)
	return viewers
}
