// Package rule holds the awareness predicate: the single source of truth for
// whether one object perceives another.
package rule

import (
	"math"

	"github.com/swgo/server/internal/object"
)

// Subject is an immutable snapshot of what the rule reads about one object.
// A new Subject is published whenever any of these fields change, so a
// Subject can be shared with concurrent readers without locking.
type Subject struct {
	ID       object.ID
	Kind     object.Kind
	Planet   object.Planet
	Instance object.Instance

	// Position is the object's own planet-local position.
	Position object.Position
	// Anchor is the position of the root of the parent chain. It equals
	// Position for objects without a parent. Chunks bucket on Anchor.
	Anchor object.Position

	Parent    object.ID
	HasParent bool

	// LoadRange is the effective load range: inherited from children for
	// containers and clamped to the engine cap.
	LoadRange float64
	Enabled   bool
}

// Aware reports whether o is aware of t. The result is symmetric:
// Aware(o, t) == Aware(t, o) for every pair.
func Aware(o, t *Subject) bool {
	if o == nil || t == nil || o.ID == t.ID {
		return false
	}
	if !o.Enabled || !t.Enabled {
		return false
	}
	if o.Planet == object.PlanetNone || o.Planet != t.Planet {
		return false
	}
	if o.Instance != t.Instance {
		return false
	}
	return InRange(o, t)
}

// InRange applies only the distance part of the rule.
func InRange(o, t *Subject) bool {
	return Distance(o, t) <= math.Max(o.LoadRange, t.LoadRange)
}

// Distance is the effective distance between two subjects. Objects sharing
// the same direct parent (or both without one) use their own positions;
// otherwise each side is represented by the root of its container chain.
// Walls never block awareness, only range does.
func Distance(o, t *Subject) float64 {
	if sameParent(o, t) {
		return o.Position.DistanceTo(t.Position)
	}
	return o.Anchor.DistanceTo(t.Anchor)
}

func sameParent(o, t *Subject) bool {
	if o.HasParent != t.HasParent {
		return false
	}
	return !o.HasParent || o.Parent == t.Parent
}

// EffectiveLoadRange combines an object's preferred range with the largest
// effective range among its direct children (containers only), clamped to
// [0, limit].
func EffectiveLoadRange(kind object.Kind, pref, maxChild, limit float64) float64 {
	r := pref
	if kind.IsContainer() && maxChild > r {
		r = maxChild
	}
	return Clamp(r, limit)
}

// Clamp bounds a load range to [0, limit]. NaN is treated as 0.
func Clamp(r, limit float64) float64 {
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > limit {
		return limit
	}
	return r
}
