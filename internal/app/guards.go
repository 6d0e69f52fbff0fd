package app

import (
	"fmt"

	"missioncontrol/api/internal/store"
)

// Lifecycle is the coarse state of an entity.
type Lifecycle string

const (
	LifecycleUnassigned Lifecycle = "unassigned"
	LifecycleAssigned   Lifecycle = "assigned"
	LifecycleCompleted  Lifecycle = "completed"
)

func LifecycleOf(e store.Entity) Lifecycle {
	switch {
	case e.Completed:
		return LifecycleCompleted
	case e.OwnerID == "":
		return LifecycleUnassigned
	default:
		return LifecycleAssigned
	}
}

// GuardResult is the outcome of a transition check.
type GuardResult struct {
	Allowed bool
	Reason  string
}

func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return conflict(r.Reason)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(format string, args ...any) GuardResult {
	return GuardResult{Reason: fmt.Sprintf(format, args...)}
}

// CanReassign covers both claim (unassigned) and hand-over (assigned).
func CanReassign(e store.Entity) GuardResult {
	if LifecycleOf(e) == LifecycleCompleted {
		return deny("cannot reassign completed entity %s", e.ID)
	}
	return allow()
}

// CanComplete allows completed entities through; completing twice is a no-op.
func CanComplete(e store.Entity) GuardResult {
	if LifecycleOf(e) == LifecycleUnassigned {
		return deny("cannot complete unassigned entity %s", e.ID)
	}
	return allow()
}

// CanDelete requires a privileged request for completed entities. Whether
// the caller may make privileged requests is an rbac question.
func CanDelete(e store.Entity, privileged bool) GuardResult {
	if LifecycleOf(e) == LifecycleCompleted && !privileged {
		return deny("entity %s is completed; destroying it requires a privileged request", e.ID)
	}
	return allow()
}

func CanEdit(e store.Entity) GuardResult {
	if LifecycleOf(e) == LifecycleCompleted {
		return deny("cannot edit completed entity %s", e.ID)
	}
	return allow()
}
