package store

import (
	"errors"
	"time"

	"missioncontrol/api/internal/zone"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrCompleted  = errors.New("entity is completed")
	ErrUnassigned = errors.New("entity is unassigned")
)

// Entity is the persisted projection of a tracker task onto the zone map.
type Entity struct {
	ID            string
	TeamID        string
	ExternalID    string
	OwnerID       string
	Name          string
	Description   string
	Kind          string
	Priority      string
	TrackerStatus string
	Position      zone.Point
	Points        int
	Completed     bool
	SeenBy        map[string]bool
	Revision      int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EntityQuery filters SearchEntities. Text is a case-insensitive substring of
// name or description; empty OwnerID matches every owner.
type EntityQuery struct {
	TeamID   string
	Text     string
	OwnerID  string
	OnlyOpen bool
	Limit    int
	Offset   int
}

// EntityPatch carries optional field edits; nil fields are left alone.
type EntityPatch struct {
	Name          *string
	Description   *string
	Kind          *string
	Priority      *string
	Points        *int
	TrackerStatus *string
}

func (p EntityPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Kind == nil &&
		p.Priority == nil && p.Points == nil && p.TrackerStatus == nil
}

// Occupant is an existing entity position considered during placement.
type Occupant struct {
	EntityID string
	OwnerID  string
	Point    zone.Point
}

// PlaceFunc chooses a position given the current occupants of a team.
// It runs inside the transaction that writes the position.
type PlaceFunc func(occupants []Occupant) zone.Point

type PointTransaction struct {
	ID        string
	TeamID    string
	PayeeID   string
	SourceID  string
	Label     string
	Points    int
	CreatedAt time.Time
}

type TeamBalance struct {
	TeamID      string
	TotalPoints int64
	UpdatedAt   time.Time
}

type OwnerBalance struct {
	TeamID         string
	OwnerID        string
	PersonalPoints int64
}

// BalanceDrift compares a recorded team balance with the sum of its transactions.
type BalanceDrift struct {
	TeamID   string
	Recorded int64
	Computed int64
}

func (d BalanceDrift) Consistent() bool { return d.Recorded == d.Computed }

// CompleteResult describes what CompleteEntity did.
type CompleteResult struct {
	AlreadyCompleted bool
	Credited         bool
	Credit           CreditOutcome
	Transaction      PointTransaction
}
