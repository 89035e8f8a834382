package awareness

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	coresys "github.com/swgo/server/internal/core/system"
	"github.com/swgo/server/internal/object"
	"github.com/swgo/server/internal/rule"
)

// inputSystem applies queued mutations in arrival order.
type inputSystem struct{ e *Engine }

func (s *inputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *inputSystem) Update(time.Duration) {
	s.e.commands.Drain(func(cmds []command) {
		for _, c := range cmds {
			s.e.apply(c)
		}
	})
}

// refreshSystem recomputes the awareness set of every dirty observer.
type refreshSystem struct{ e *Engine }

func (s *refreshSystem) Phase() coresys.Phase { return coresys.PhaseRefresh }

func (s *refreshSystem) Update(time.Duration) { s.e.refreshDirty() }

// outputSystem hands the tick's events to the sink.
type outputSystem struct{ e *Engine }

func (s *outputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *outputSystem) Update(time.Duration) { s.e.flush() }

// cleanupSystem settles moved objects back to placed.
type cleanupSystem struct{ e *Engine }

func (s *cleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *cleanupSystem) Update(time.Duration) {
	e := s.e
	for _, id := range e.moved {
		if r, ok := e.records.Get(id); ok && r.state == StateMoved {
			r.state = StatePlaced
		}
	}
	e.moved = e.moved[:0]
}

// ---- input ----

func (e *Engine) apply(c command) {
	switch c.op {
	case opRegister:
		e.register(c.entity)
	case opUnregister:
		e.destroy(c.entity.ID())
	default:
		e.resync(c.op, c.entity.ID())
	}
}

func (e *Engine) register(ent object.Entity) {
	r := newRecord(ent)
	if e.records.Has(r.id) {
		panic(fmt.Sprintf("awareness: record %d registered twice", r.id))
	}
	e.records.Set(r.id, r)
	e.readAttributes(r)
	if pid, ok := e.resolveParent(r); ok {
		e.link(r, pid)
	}
	e.recomputeRange(r)
	e.publishSubtree(r)
	if r.hasParent {
		e.propagateRange(r.parent)
	}
	e.adoptWaiting(r.id)
	e.log.Debug("registered",
		zap.Uint64("id", uint64(r.id)),
		zap.Stringer("kind", r.kind),
		zap.String("planet", string(r.planet)),
	)
}

// resync re-reads every attribute of an entity. The notification kind only
// decides whether the object counts as moved.
func (e *Engine) resync(op opKind, id object.ID) {
	r, ok := e.records.Get(id)
	if !ok {
		e.log.Warn("notification for missing record", zap.Uint64("id", uint64(id)), zap.Stringer("op", op))
		return
	}
	oldPlanet := r.planet
	moved := e.readAttributes(r)
	if e.relink(r) {
		moved = true
	}

	e.recomputeRange(r)
	e.publishSubtree(r)
	if r.hasParent {
		e.propagateRange(r.parent)
	}
	if r.planet != oldPlanet {
		// Contents left on the old planet drop out; children waiting on the
		// new one may now link.
		for _, cid := range r.childIDs() {
			e.revalidate(cid)
		}
		e.adoptWaiting(r.id)
	}
	if moved {
		e.markMoved(r)
	}
}

// relink re-resolves r's parent and moves the link if it changed. It
// reports whether the link changed.
func (e *Engine) relink(r *record) bool {
	pid, has := e.resolveParent(r)
	if has == r.hasParent && pid == r.parent {
		return false
	}
	old, hadOld := r.parent, r.hasParent
	e.unlink(r)
	if has {
		e.link(r, pid)
	}
	if hadOld {
		e.propagateRange(old)
	}
	return true
}

// revalidate re-checks a child's parent link after the parent's side
// changed.
func (e *Engine) revalidate(id object.ID) {
	c, ok := e.records.Get(id)
	if !ok || !e.relink(c) {
		return
	}
	e.recomputeRange(c)
	e.publishSubtree(c)
	if c.hasParent {
		e.propagateRange(c.parent)
	}
	e.markMoved(c)
}

// adoptWaiting links every child that named id as parent before id could
// accept it.
func (e *Engine) adoptWaiting(id object.ID) {
	for _, cid := range e.waitingFor(id) {
		e.revalidate(cid)
	}
}

func (e *Engine) markMoved(r *record) {
	if r.state == StatePlaced {
		r.state = StateMoved
		e.moved = append(e.moved, r.id)
	}
}

// destroy emits the leave wave for id and drops every trace of it.
func (e *Engine) destroy(id object.ID) {
	r, ok := e.records.Get(id)
	if !ok {
		return
	}
	if set, ok := e.sets.Get(id); ok {
		targets := set.IDs()
		for _, t := range targets {
			if ts, ok := e.sets.Get(t); ok && ts.Remove(id) {
				e.emit(Leave, t, id)
			}
		}
		for _, t := range targets {
			e.emit(Leave, id, t)
		}
	}
	e.terrain.Remove(id)

	parent, hadParent := r.parent, r.hasParent
	e.unlink(r)
	e.dropClaim(id)
	children := r.childIDs()
	e.registry.RemoveAll(id)

	if hadParent {
		e.propagateRange(parent)
	}
	// Contents become top-level objects at their own positions.
	for _, cid := range children {
		c, ok := e.records.Get(cid)
		if !ok {
			continue
		}
		c.parent, c.hasParent = 0, false
		if pid, ok := c.entity.Parent(); ok && pid == id {
			e.setClaim(cid, id)
		}
		e.publishSubtree(c)
	}
	e.log.Debug("unregistered", zap.Uint64("id", uint64(id)), zap.Int("orphans", len(children)))
}

// ---- refresh ----

func (e *Engine) refreshDirty() {
	if e.dirty.Len() == 0 {
		return
	}
	ids := e.dirty.Keys()
	e.dirty.Clear()
	slices.Sort(ids)

	batch := e.opts.RefreshBatch
	if batch <= 0 {
		batch = len(ids)
	}
	next := make([][]object.ID, 0, len(ids))
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		next = append(next, e.computeSets(ids[start:end])...)
	}

	// Every leave of the tick goes out before any enter.
	for i, id := range ids {
		e.applyLeaves(id, next[i])
		e.relievePressure()
	}
	for i, id := range ids {
		e.applyEnters(id, next[i])
		e.relievePressure()
	}
}

// relievePressure flushes the queued events once they reach the high
// water mark.
func (e *Engine) relievePressure() {
	if !e.events.Full() {
		return
	}
	e.stats.backPressure++
	e.log.Debug("flushing events mid-tick",
		zap.Int("queued", e.events.Len()),
		zap.Error(ErrBackPressure),
	)
	e.flush()
}

// computeSets returns the sorted awareness set each observer should have.
// Snapshots are immutable during the refresh phase, so the terrain queries
// may run concurrently.
func (e *Engine) computeSets(ids []object.ID) [][]object.ID {
	subjects := make([]*rule.Subject, len(ids))
	for i, id := range ids {
		if r, ok := e.records.Get(id); ok {
			subjects[i] = r.subject
		}
	}
	out := make([][]object.ID, len(ids))
	if e.opts.ParallelReaders <= 0 || len(ids) < 2 {
		for i, s := range subjects {
			out[i] = e.awareTargets(s)
		}
		return out
	}
	var g errgroup.Group
	g.SetLimit(e.opts.ParallelReaders)
	for i, s := range subjects {
		g.Go(func() error {
			out[i] = e.awareTargets(s)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) awareTargets(s *rule.Subject) []object.ID {
	if s == nil || !s.Enabled || s.Planet == object.PlanetNone {
		return nil
	}
	found := e.terrain.WithinAwareness(s)
	out := make([]object.ID, len(found))
	for i, t := range found {
		out[i] = t.ID
	}
	slices.Sort(out)
	return out
}

// applyLeaves drops every member of id's set missing from next. Each change
// is mirrored into the target's set so pairs stay symmetric.
func (e *Engine) applyLeaves(id object.ID, next []object.ID) {
	if !e.records.Has(id) {
		return
	}
	leaves, _ := e.setOf(id).Diff(next)
	for _, t := range leaves {
		e.unpair(id, t)
	}
}

// applyEnters pairs id with every member of next it is not aware of yet.
// Targets already paired from their own side are skipped by the diff.
func (e *Engine) applyEnters(id object.ID, next []object.ID) {
	if !e.records.Has(id) {
		return
	}
	_, enters := e.setOf(id).Diff(next)
	for _, t := range enters {
		e.pair(id, t)
	}
}

func (e *Engine) pair(o, t object.ID) {
	if !e.setOf(o).Add(t) {
		panic(fmt.Sprintf("awareness: %d already aware of %d", o, t))
	}
	e.emit(Enter, o, t)
	if !e.setOf(t).Add(o) {
		panic(fmt.Sprintf("awareness: asymmetric pair %d/%d", o, t))
	}
	e.emit(Enter, t, o)
}

func (e *Engine) unpair(o, t object.ID) {
	e.setOf(o).Remove(t)
	e.emit(Leave, o, t)
	if ts, ok := e.sets.Get(t); ok && ts.Remove(o) {
		e.emit(Leave, t, o)
	}
}

func (e *Engine) setOf(id object.ID) *Set {
	s, ok := e.sets.Get(id)
	if !ok {
		s = newSet()
		e.sets.Set(id, s)
	}
	return s
}

// ---- output ----

func (e *Engine) emit(kind EventKind, o, t object.ID) {
	if kind == Enter {
		e.stats.enters++
	} else {
		e.stats.leaves++
	}
	e.events.Push(Event{Kind: kind, Observer: o, Target: t, Tick: e.tick})
}

func (e *Engine) flush() {
	e.events.Drain(func(evs []Event) {
		b, batched := e.sink.(Batcher)
		if batched {
			b.BeginBatch(e.tick)
		}
		for _, ev := range evs {
			if ev.Kind == Enter {
				e.sink.OnEnter(ev.Observer, ev.Target)
			} else {
				e.sink.OnLeave(ev.Observer, ev.Target)
			}
		}
		if batched {
			b.EndBatch()
		}
	})
}
