// Package zone maps owners onto base coordinates of the zone map.
package zone

import (
	"math"
	"sort"
	"strings"
)

// Point is a coordinate on the zone map.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Owner identifies an agent. The empty owner is the unassigned sentinel.
type Owner string

const Unassigned Owner = ""

// Normalize trims and lower-cases an owner string as received from callers.
func Normalize(raw string) Owner {
	return Owner(strings.ToLower(strings.TrimSpace(raw)))
}

// Map geometry of the built-in directory.
const (
	Centre          = 5000.0
	OwnerDistance   = 3000.0
	MissionDistance = 2800.0
)

// Zone is a single owner's entry.
type Zone struct {
	Owner         Owner
	Base          Point
	TrackerUserID string
}

// Directory is the immutable owner -> zone table. Build one with NewDirectory,
// Default or Load and share it; nothing mutates it afterwards.
type Directory struct {
	zones      map[Owner]Zone
	fallback   Point
	unassigned Point
}

func NewDirectory(zones []Zone, fallback, unassigned Point) *Directory {
	table := make(map[Owner]Zone, len(zones))
	for _, z := range zones {
		z.Owner = Normalize(string(z.Owner))
		if z.Owner == Unassigned {
			continue
		}
		table[z.Owner] = z
	}
	return &Directory{zones: table, fallback: fallback, unassigned: unassigned}
}

// Default returns the five-agent layout around mission control.
func Default() *Directory {
	diag := OwnerDistance * 0.7
	return NewDirectory([]Zone{
		{Owner: "quentin", Base: Point{X: Centre + OwnerDistance, Y: Centre}},
		{Owner: "alex", Base: Point{X: Centre + diag, Y: Centre - diag}},
		{Owner: "armel", Base: Point{X: Centre, Y: Centre - OwnerDistance}},
		{Owner: "milya", Base: Point{X: Centre - diag, Y: Centre - diag}},
		{Owner: "hugues", Base: Point{X: Centre - OwnerDistance, Y: Centre}},
	}, MissionControl(), Point{X: Centre, Y: Centre})
}

// MissionControl is the hub anchor used for owners the directory does not know.
func MissionControl() Point {
	return Point{X: Centre, Y: Centre + MissionDistance*1.1}
}

// ZoneOf returns the base coordinate for owner. Unknown owners land on the
// fallback anchor and the unassigned sentinel on the unassigned anchor.
func (d *Directory) ZoneOf(owner Owner) Point {
	owner = Normalize(string(owner))
	if owner == Unassigned {
		return d.unassigned
	}
	if z, ok := d.zones[owner]; ok {
		return z.Base
	}
	return d.fallback
}

func (d *Directory) Known(owner Owner) bool {
	_, ok := d.zones[Normalize(string(owner))]
	return ok
}

// TrackerUserID returns the tracker-side identity of owner, if configured.
func (d *Directory) TrackerUserID(owner Owner) (string, bool) {
	z, ok := d.zones[Normalize(string(owner))]
	if !ok || z.TrackerUserID == "" {
		return "", false
	}
	return z.TrackerUserID, true
}

// Owners lists known owners in name order.
func (d *Directory) Owners() []Owner {
	owners := make([]Owner, 0, len(d.zones))
	for o := range d.zones {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

func (d *Directory) Fallback() Point   { return d.fallback }
func (d *Directory) Unassigned() Point { return d.unassigned }
