// Package realtime carries committed entity changes to connected clients and
// merges them into each client's optimistic view.
package realtime

import "context"

// Field names carried in Delta.Changed.
const (
	FieldOwner         = "ownerId"
	FieldName          = "name"
	FieldDescription   = "description"
	FieldKind          = "kind"
	FieldPriority      = "priority"
	FieldPoints        = "points"
	FieldPosition      = "position"
	FieldCompleted     = "completed"
	FieldSeenBy        = "seenBy"
	FieldTrackerStatus = "trackerStatus"
)

// AllFields is the Changed set of a freshly created entity.
var AllFields = []string{
	FieldOwner, FieldName, FieldDescription, FieldKind, FieldPriority,
	FieldPoints, FieldPosition, FieldCompleted, FieldSeenBy, FieldTrackerStatus,
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EntityState is the wire form of an entity.
type EntityState struct {
	ID            string   `json:"id"`
	TeamID        string   `json:"teamId"`
	ExternalID    string   `json:"externalId"`
	OwnerID       string   `json:"ownerId"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Kind          string   `json:"kind"`
	Priority      string   `json:"priority"`
	TrackerStatus string   `json:"trackerStatus"`
	Position      Position `json:"position"`
	Points        int      `json:"points"`
	Completed     bool     `json:"completed"`
	SeenBy        []string `json:"seenBy"`
	Revision      int64    `json:"revision"`
}

// Delta announces a committed change. Delivery is at-least-once; Revision
// orders deltas of the same entity.
type Delta struct {
	EntityID string       `json:"entityId"`
	TeamID   string       `json:"teamId"`
	Revision int64        `json:"revision"`
	Changed  []string     `json:"changed"`
	State    *EntityState `json:"state,omitempty"`
	Deleted  bool         `json:"deleted,omitempty"`
}

const (
	MessageSnapshot = "SNAPSHOT"
	MessageDelta    = "DELTA"
)

// Message is a frame on the feed websocket.
type Message struct {
	Type     string        `json:"type"`
	Entities []EntityState `json:"entities,omitempty"`
	Delta    *Delta        `json:"delta,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, d Delta) error
}
