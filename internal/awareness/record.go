package awareness

import (
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/swgo/server/internal/object"
	"github.com/swgo/server/internal/rule"
)

// State is the lifecycle state of one registered object.
type State uint8

const (
	StateUnregistered State = iota
	StateRegistered         // known, but on no planet
	StatePlaced
	StateMoved // placed, position changed this tick
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StatePlaced:
		return "placed"
	case StateMoved:
		return "moved"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// record is the engine's arena entry for one object. Containment is kept
// here as ids in both directions; the entity's own Parent() is only read
// when a registration or notification is applied.
type record struct {
	entity object.Entity
	id     object.ID
	kind   object.Kind

	planet   object.Planet
	instance object.Instance
	pos      object.Position
	pref     float64
	enabled  bool

	parent    object.ID
	hasParent bool
	children  map[object.ID]struct{}

	effRange float64
	subject  *rule.Subject
	state    State
}

func newRecord(ent object.Entity) *record {
	return &record{
		entity:   ent,
		id:       ent.ID(),
		kind:     ent.Kind(),
		children: make(map[object.ID]struct{}),
	}
}

func (r *record) childIDs() []object.ID {
	out := make([]object.ID, 0, len(r.children))
	for id := range r.children {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// readAttributes copies the entity's current attributes into the record.
// It reports whether the planet or position changed.
func (e *Engine) readAttributes(r *record) bool {
	ent := r.entity
	planet := ent.Planet()
	pos := e.sanitize(r.id, planet, ent.Position())
	moved := planet != r.planet || pos != r.pos
	r.planet = planet
	r.pos = pos
	r.instance = ent.Instance()
	r.pref = ent.LoadRange()
	r.enabled = ent.AwarenessEnabled()
	return moved
}

// sanitize replaces NaN coordinates with 0 and clamps infinite X and Y to
// the planet bounds. An infinite Z becomes 0.
func (e *Engine) sanitize(id object.ID, planet object.Planet, p object.Position) object.Position {
	if p.Finite() {
		return p
	}
	b := e.terrain.BoundsOf(planet)
	out := object.Position{
		X: clampCoord(p.X, b.MinX, b.MaxX),
		Y: clampCoord(p.Y, b.MinY, b.MaxY),
		Z: clampCoord(p.Z, 0, 0),
	}
	e.log.Warn("clamped non-finite position",
		zap.Uint64("id", uint64(id)),
		zap.Stringer("from", p),
		zap.Stringer("to", out),
		zap.Error(ErrInvalidPosition),
	)
	return out
}

func clampCoord(v, min, max float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return max
	case math.IsInf(v, -1):
		return min
	}
	return v
}

// resolveParent validates the parent the entity reports. A parent that is
// unknown, on another planet, or would close a cycle is ignored. Unknown and
// cross-planet parents are remembered as claims and retried when the parent
// registers or changes planet.
func (e *Engine) resolveParent(r *record) (object.ID, bool) {
	e.dropClaim(r.id)
	pid, ok := r.entity.Parent()
	if !ok {
		return 0, false
	}
	reject := func(reason string, retry bool) (object.ID, bool) {
		e.log.Warn("ignoring parent",
			zap.Uint64("id", uint64(r.id)),
			zap.Uint64("parent", uint64(pid)),
			zap.String("reason", reason),
		)
		if retry {
			e.setClaim(r.id, pid)
		}
		return 0, false
	}
	if pid == r.id {
		return reject("self", false)
	}
	p, ok := e.records.Get(pid)
	if !ok {
		return reject("parent not registered", true)
	}
	if p.planet != r.planet {
		return reject("parent on another planet", true)
	}
	for a := p; a.hasParent; {
		if a.parent == r.id {
			return reject("cycle", false)
		}
		next, ok := e.records.Get(a.parent)
		if !ok {
			break
		}
		a = next
	}
	return pid, true
}

func (e *Engine) setClaim(child, parent object.ID) {
	e.claims[child] = parent
	w := e.waiting[parent]
	if w == nil {
		w = make(map[object.ID]struct{})
		e.waiting[parent] = w
	}
	w[child] = struct{}{}
}

func (e *Engine) dropClaim(child object.ID) {
	parent, ok := e.claims[child]
	if !ok {
		return
	}
	delete(e.claims, child)
	if w := e.waiting[parent]; w != nil {
		delete(w, child)
		if len(w) == 0 {
			delete(e.waiting, parent)
		}
	}
}

// waitingFor returns the children claiming id as parent, ascending.
func (e *Engine) waitingFor(id object.ID) []object.ID {
	w := e.waiting[id]
	if len(w) == 0 {
		return nil
	}
	out := make([]object.ID, 0, len(w))
	for cid := range w {
		out = append(out, cid)
	}
	slices.Sort(out)
	return out
}

func (e *Engine) link(r *record, pid object.ID) {
	p, ok := e.records.Get(pid)
	if !ok {
		return
	}
	p.children[r.id] = struct{}{}
	r.parent, r.hasParent = pid, true
}

func (e *Engine) unlink(r *record) {
	if !r.hasParent {
		return
	}
	if p, ok := e.records.Get(r.parent); ok {
		delete(p.children, r.id)
	}
	r.parent, r.hasParent = 0, false
}

// anchorOf returns the position of the root of r's containment chain.
func (e *Engine) anchorOf(r *record) object.Position {
	for r.hasParent {
		p, ok := e.records.Get(r.parent)
		if !ok {
			break
		}
		r = p
	}
	return r.pos
}

// recomputeRange refreshes r's effective load range from its preference
// and its direct children. It reports whether the range changed.
func (e *Engine) recomputeRange(r *record) bool {
	var maxChild float64
	for id := range r.children {
		if c, ok := e.records.Get(id); ok && c.effRange > maxChild {
			maxChild = c.effRange
		}
	}
	eff := rule.EffectiveLoadRange(r.kind, r.pref, maxChild, e.limit)
	changed := eff != r.effRange
	r.effRange = eff
	return changed
}

// propagateRange walks up from id recomputing effective ranges until one
// does not change.
func (e *Engine) propagateRange(id object.ID) {
	for {
		r, ok := e.records.Get(id)
		if !ok || !e.recomputeRange(r) {
			return
		}
		e.publish(r)
		e.markDirty(r.id)
		if !r.hasParent {
			return
		}
		id = r.parent
	}
}

// publish builds a fresh snapshot for r and re-buckets it.
func (e *Engine) publish(r *record) {
	s := &rule.Subject{
		ID:        r.id,
		Kind:      r.kind,
		Planet:    r.planet,
		Instance:  r.instance,
		Position:  r.pos,
		Anchor:    e.anchorOf(r),
		Parent:    r.parent,
		HasParent: r.hasParent,
		LoadRange: r.effRange,
		Enabled:   r.enabled,
	}
	r.subject = s
	if s.Planet == object.PlanetNone {
		e.terrain.Remove(r.id)
		r.state = StateRegistered
		return
	}
	if _, err := e.terrain.Move(s); err != nil {
		panic(fmt.Sprintf("awareness: re-bucket %d: %v", r.id, err))
	}
	if r.state != StateMoved {
		r.state = StatePlaced
	}
}

// publishSubtree publishes r and everything contained in it, since their
// anchors follow r, and marks them all dirty.
func (e *Engine) publishSubtree(r *record) {
	e.publish(r)
	e.markDirty(r.id)
	for _, id := range r.childIDs() {
		if c, ok := e.records.Get(id); ok {
			e.publishSubtree(c)
		}
	}
}

func (e *Engine) markDirty(id object.ID) {
	e.dirty.Set(id, &struct{}{})
}
