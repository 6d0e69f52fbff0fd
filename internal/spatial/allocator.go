// Package spatial places entities inside an owner's zone without overlap.
package spatial

import (
	"math"
	"math/rand"
	"sync"

	"missioncontrol/api/internal/zone"
)

// Params controls ring/slot probing around a zone base.
type Params struct {
	MinSeparation float64
	BaseRadius    float64
	RingSpacing   float64
	AngleStep     float64
	RingStagger   float64
	SlotsPerRing  int
	MaxRings      int
}

func DefaultParams() Params {
	return Params{
		MinSeparation: 150,
		BaseRadius:    380,
		RingSpacing:   100,
		AngleStep:     0.7,
		RingStagger:   0.35,
		SlotsPerRing:  9,
		MaxRings:      42,
	}
}

// FallbackRadius is where placements land once every probe slot is taken.
func (p Params) FallbackRadius() float64 {
	return p.BaseRadius + float64(p.MaxRings+1)*p.RingSpacing
}

// Attempts is the number of deterministic probes before the fallback.
func (p Params) Attempts() int {
	return p.SlotsPerRing * p.MaxRings
}

// Placement is the outcome of Allocate. Attempt is -1 for fallback placements.
type Placement struct {
	Point    zone.Point
	Attempt  int
	Fallback bool
}

// Allocator is safe for concurrent use. Probing is a pure function of the
// inputs; only the fallback angle draws from the allocator's own RNG.
type Allocator struct {
	dir    *zone.Directory
	params Params

	mu  sync.Mutex
	rng *rand.Rand
}

func New(dir *zone.Directory, params Params, seed int64) *Allocator {
	return &Allocator{
		dir:    dir,
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (a *Allocator) Params() Params { return a.params }

// Probe returns the candidate for the given attempt index around owner's base.
func (a *Allocator) Probe(owner zone.Owner, attempt int) zone.Point {
	base := a.dir.ZoneOf(owner)
	ring := attempt / a.params.SlotsPerRing
	slot := attempt % a.params.SlotsPerRing
	radius := a.params.BaseRadius + float64(ring)*a.params.RingSpacing
	angle := float64(slot)*a.params.AngleStep + float64(ring)*a.params.RingStagger
	return zone.Point{
		X: base.X + math.Cos(angle)*radius,
		Y: base.Y + math.Sin(angle)*radius,
	}
}

// Allocate returns the first probe at least MinSeparation away from every
// occupied point and from the owner's base. It never fails.
func (a *Allocator) Allocate(owner zone.Owner, occupied []zone.Point) Placement {
	base := a.dir.ZoneOf(owner)
	for attempt := 0; attempt < a.params.Attempts(); attempt++ {
		candidate := a.Probe(owner, attempt)
		if a.clear(candidate, base, occupied) {
			return Placement{Point: candidate, Attempt: attempt}
		}
	}

	a.mu.Lock()
	angle := a.rng.Float64() * 2 * math.Pi
	a.mu.Unlock()
	radius := a.params.FallbackRadius()
	return Placement{
		Point: zone.Point{
			X: base.X + math.Cos(angle)*radius,
			Y: base.Y + math.Sin(angle)*radius,
		},
		Attempt:  -1,
		Fallback: true,
	}
}

func (a *Allocator) clear(candidate, base zone.Point, occupied []zone.Point) bool {
	if candidate.DistanceTo(base) < a.params.MinSeparation {
		return false
	}
	for _, p := range occupied {
		if candidate.DistanceTo(p) < a.params.MinSeparation {
			return false
		}
	}
	return true
}
