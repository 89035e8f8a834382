package object

import (
	"fmt"
	"sort"

	"github.com/sasha-s/go-deadlock"
)

// Object is the shared header every kind of game object carries. It is the
// reference implementation of Entity used by the server's object graph and
// by tests. Setters are safe for concurrent use with the getters; the
// engine only learns about a change once the owner calls the matching
// notify method.
type Object struct {
	mu deadlock.RWMutex

	id       ID
	kind     Kind
	template string

	planet   Planet
	instance Instance
	pos      Position

	parent    ID
	hasParent bool
	children  map[ID]struct{}

	prefLoadRange float64
	awareness     bool
}

// New creates an enabled, unplaced object of the given kind.
func New(id ID, kind Kind) *Object {
	return &Object{
		id:        id,
		kind:      kind,
		awareness: true,
	}
}

// NewCreature is shorthand for a creature placed at (x, y, z) on a planet.
func NewCreature(id ID, planet Planet, x, y, z, loadRange float64) *Object {
	o := New(id, KindCreature)
	o.SetPosition(planet, x, y, z)
	o.SetPrefLoadRange(loadRange)
	return o
}

func (o *Object) String() string {
	return fmt.Sprintf("%s<%d>", o.kind, o.id)
}

func (o *Object) ID() ID     { return o.id }
func (o *Object) Kind() Kind { return o.kind }

func (o *Object) Template() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.template
}

func (o *Object) SetTemplate(template string) {
	o.mu.Lock()
	o.template = template
	o.mu.Unlock()
}

func (o *Object) Planet() Planet {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.planet
}

func (o *Object) Instance() Instance {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.instance
}

func (o *Object) SetInstance(kind InstanceKind, number int32) {
	o.mu.Lock()
	o.instance = Instance{Kind: kind, Number: number}
	o.mu.Unlock()
}

func (o *Object) Position() Position {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pos
}

// SetPosition moves the object to planet-local coordinates on a planet.
func (o *Object) SetPosition(planet Planet, x, y, z float64) {
	o.mu.Lock()
	o.planet = planet
	o.pos = Position{X: x, Y: y, Z: z}
	o.mu.Unlock()
}

// MoveTo changes coordinates without changing planet.
func (o *Object) MoveTo(x, y, z float64) {
	o.mu.Lock()
	o.pos = Position{X: x, Y: y, Z: z}
	o.mu.Unlock()
}

// ClearPlanet takes the object off-world. Its coordinates are kept.
func (o *Object) ClearPlanet() {
	o.mu.Lock()
	o.planet = PlanetNone
	o.mu.Unlock()
}

func (o *Object) Parent() (ID, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.parent, o.hasParent
}

func (o *Object) setParent(id ID, ok bool) {
	o.mu.Lock()
	o.parent, o.hasParent = id, ok
	o.mu.Unlock()
}

func (o *Object) LoadRange() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.prefLoadRange
}

// SetPrefLoadRange sets the preferred load range. Negative values are stored as 0.
func (o *Object) SetPrefLoadRange(r float64) {
	if r < 0 {
		r = 0
	}
	o.mu.Lock()
	o.prefLoadRange = r
	o.mu.Unlock()
}

func (o *Object) AwarenessEnabled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.awareness
}

func (o *Object) SetAwareness(enabled bool) {
	o.mu.Lock()
	o.awareness = enabled
	o.mu.Unlock()
}

// AddChild puts child directly inside o. The child takes o's planet and
// instance; its coordinates are left alone since they are planet-local.
func (o *Object) AddChild(child *Object) {
	o.mu.Lock()
	if o.children == nil {
		o.children = make(map[ID]struct{})
	}
	o.children[child.id] = struct{}{}
	planet, instance := o.planet, o.instance
	o.mu.Unlock()

	child.mu.Lock()
	child.parent, child.hasParent = o.id, true
	child.planet, child.instance = planet, instance
	child.mu.Unlock()
}

// RemoveChild detaches child from o. No-op if child is not inside o.
func (o *Object) RemoveChild(child *Object) {
	o.mu.Lock()
	_, ok := o.children[child.id]
	delete(o.children, child.id)
	o.mu.Unlock()
	if !ok {
		return
	}
	if p, has := child.Parent(); has && p == o.id {
		child.setParent(0, false)
	}
}

// Children returns the ids of the direct children, ascending.
func (o *Object) Children() []ID {
	o.mu.RLock()
	out := make([]ID, 0, len(o.children))
	for id := range o.children {
		out = append(out, id)
	}
	o.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
