package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoPendingEdit    = errors.New("no pending edit")
	ErrCommitInFlight   = errors.New("commit already in flight")
	ErrFieldNotEditable = errors.New("field is not editable")
	ErrUnknownEntity    = errors.New("unknown entity")
)

// WriteBack persists a committed local edit. It runs on its own goroutine.
type WriteBack func(ctx context.Context, entityID string, fields map[string]any) error

// WriteResult reports the outcome of a WriteBack to the reconciler's owner.
type WriteResult struct {
	EntityID   string
	Seq      uint64
	Err      error
}

// PendingEdit is a local change not yet acknowledged by the server.
type PendingEdit struct {
	EntityID   string
	// Stamp is the entity's known revision when the edit was last touched.
	Stamp      int64
	Fields     map[string]any
	Committing bool

	seq    uint64
	shadow map[string]any
}

// Reconciler holds one client's view of a team's entities. It is not safe for
// concurrent use: a single owner goroutine calls every method and drains
// Results. Nothing here blocks on I/O.
type Reconciler struct {
	entities map[string]EntityState
	known    map[string]int64
	pending  map[string]*PendingEdit
	seq      uint64

	writeBack WriteBack
	results   chan WriteResult
}

func NewReconciler(writeBack WriteBack) *Reconciler {
	return &Reconciler{
		entities:  map[string]EntityState{},
		known:     map[string]int64{},
		pending:   map[string]*PendingEdit{},
		writeBack: writeBack,
		results:   make(chan WriteResult, 64),
	}
}

// Results delivers write-back outcomes; pass each one to Settle.
func (r *Reconciler) Results() <-chan WriteResult {
	return r.results
}

// Apply merges a delta and reports whether it changed the view. Deltas at or
// below the known revision are stale. Fields under a pending edit keep their
// local value until the edit is committed or cancelled; only the shadowed
// server value moves forward.
func (r *Reconciler) Apply(d Delta) bool {
	if d.Revision <= r.known[d.EntityID] {
		return false
	}
	r.known[d.EntityID] = d.Revision

	if d.Deleted {
		delete(r.entities, d.EntityID)
		delete(r.pending, d.EntityID)
		return true
	}
	if d.State == nil {
		return false
	}

	current, exists := r.entities[d.EntityID]
	if !exists {
		current = *d.State
		current.SeenBy = append([]string(nil), d.State.SeenBy...)
		r.entities[d.EntityID] = current
		if edit := r.pending[d.EntityID]; edit != nil {
			r.overlay(edit)
		}
		return true
	}

	changed := d.Changed
	if len(changed) == 0 {
		changed = AllFields
	}
	edit := r.pending[d.EntityID]
	for _, field := range changed {
		if edit != nil {
			if _, edited := edit.Fields[field]; edited {
				edit.shadow[field] = fieldValue(*d.State, field)
				continue
			}
		}
		copyField(&current, *d.State, field)
	}
	current.Revision = d.Revision
	r.entities[d.EntityID] = current
	return true
}

// Resync replaces the view with an authoritative snapshot. Pending edits on
// entities that still exist are re-applied on top.
func (r *Reconciler) Resync(entities []EntityState) {
	r.entities = make(map[string]EntityState, len(entities))
	r.known = make(map[string]int64, len(entities))
	for _, e := range entities {
		r.entities[e.ID] = e
		r.known[e.ID] = e.Revision
	}
	for id, edit := range r.pending {
		current, ok := r.entities[id]
		if !ok {
			delete(r.pending, id)
			continue
		}
		for field := range edit.Fields {
			edit.shadow[field] = fieldValue(current, field)
		}
		r.overlay(edit)
	}
}

// Edit sets a field locally and records it as pending.
func (r *Reconciler) Edit(entityID, field string, value any) error {
	current, ok := r.entities[entityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	edit := r.pending[entityID]
	if edit != nil && edit.Committing {
		return ErrCommitInFlight
	}
	if err := setField(&current, field, value); err != nil {
		return err
	}
	if edit == nil {
		edit = &PendingEdit{EntityID: entityID, Fields: map[string]any{}, shadow: map[string]any{}}
		r.pending[entityID] = edit
	}
	if _, seen := edit.shadow[field]; !seen {
		edit.shadow[field] = fieldValue(r.entities[entityID], field)
	}
	edit.Fields[field] = fieldValue(current, field)
	edit.Stamp = r.known[entityID]
	r.entities[entityID] = current
	return nil
}

// Commit hands the pending edit to WriteBack without waiting for it.
func (r *Reconciler) Commit(ctx context.Context, entityID string) error {
	edit := r.pending[entityID]
	if edit == nil {
		return ErrNoPendingEdit
	}
	if edit.Committing {
		return ErrCommitInFlight
	}
	r.seq++
	edit.seq = r.seq
	edit.Committing = true

	fields := make(map[string]any, len(edit.Fields))
	for k, v := range edit.Fields {
		fields[k] = v
	}
	seq := edit.seq
	go func() {
		err := r.writeBack(ctx, entityID, fields)
		r.results <- WriteResult{EntityID: entityID, Seq: seq, Err: err}
	}()
	return nil
}

// Settle finishes a commit. On failure the server values are restored and the
// write-back error is returned.
func (r *Reconciler) Settle(res WriteResult) error {
	edit := r.pending[res.EntityID]
	if edit == nil || edit.seq != res.Seq {
		return res.Err
	}
	delete(r.pending, res.EntityID)
	if res.Err != nil {
		r.restore(edit)
	}
	return res.Err
}

// Cancel discards an uncommitted edit and restores the latest server values.
func (r *Reconciler) Cancel(entityID string) error {
	edit := r.pending[entityID]
	if edit == nil {
		return ErrNoPendingEdit
	}
	if edit.Committing {
		return ErrCommitInFlight
	}
	delete(r.pending, entityID)
	r.restore(edit)
	return nil
}

func (r *Reconciler) restore(edit *PendingEdit) {
	current, ok := r.entities[edit.EntityID]
	if !ok {
		return
	}
	for field, value := range edit.shadow {
		_ = setField(&current, field, value)
	}
	r.entities[edit.EntityID] = current
}

func (r *Reconciler) overlay(edit *PendingEdit) {
	current := r.entities[edit.EntityID]
	for field, value := range edit.Fields {
		_ = setField(&current, field, value)
	}
	r.entities[edit.EntityID] = current
}

func (r *Reconciler) Entity(entityID string) (EntityState, bool) {
	e, ok := r.entities[entityID]
	return e, ok
}

// Entities returns the current view ordered by id.
func (r *Reconciler) Entities() []EntityState {
	out := make([]EntityState, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pending returns a copy of the pending edit for entityID.
func (r *Reconciler) Pending(entityID string) (PendingEdit, bool) {
	edit := r.pending[entityID]
	if edit == nil {
		return PendingEdit{}, false
	}
	cp := *edit
	cp.Fields = make(map[string]any, len(edit.Fields))
	for k, v := range edit.Fields {
		cp.Fields[k] = v
	}
	cp.shadow = nil
	return cp, true
}

func (r *Reconciler) KnownRevision(entityID string) int64 {
	return r.known[entityID]
}
