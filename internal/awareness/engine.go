// Package awareness keeps, for every registered object, the set of other
// objects it perceives, and reports every change to that set as an ordered
// stream of enter and leave events.
//
// Mutations may be called from any goroutine. They are validated at once
// and queued; a tick applies them, refreshes every observer they made
// dirty, and delivers the resulting events to the Sink.
package awareness

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swgo/server/internal/core/arena"
	"github.com/swgo/server/internal/core/event"
	coresys "github.com/swgo/server/internal/core/system"
	"github.com/swgo/server/internal/object"
	"github.com/swgo/server/internal/rule"
	"github.com/swgo/server/internal/world"
)

type opKind uint8

const (
	opRegister opKind = iota
	opUnregister
	opPosition
	opParent
	opLoadRange
	opAwareness
)

func (o opKind) String() string {
	switch o {
	case opRegister:
		return "register"
	case opUnregister:
		return "unregister"
	case opPosition:
		return "position"
	case opParent:
		return "parent"
	case opLoadRange:
		return "load_range"
	case opAwareness:
		return "awareness"
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

type command struct {
	op     opKind
	entity object.Entity
}

// Engine is the awareness engine handle.
type Engine struct {
	opts  Options
	limit float64
	log   *zap.Logger
	sink  Sink

	terrain  *world.TerrainMap
	records  *arena.Store[object.ID, record]
	sets     *arena.Store[object.ID, Set]
	dirty    *arena.Store[object.ID, struct{}]
	registry *arena.Registry[object.ID]

	// Parents named by an entity but not linked yet: child -> parent, and
	// the reverse index used when that parent appears or moves.
	claims  map[object.ID]object.ID
	waiting map[object.ID]map[object.ID]struct{}
	runner   *coresys.Runner

	commands *event.Queue[command]
	events   *event.Queue[Event]

	mu      sync.Mutex // guards known, closed, running
	known   map[object.ID]struct{}
	closed  bool
	running bool

	tickMu  sync.RWMutex // held for writing by Tick and the shutdown drain
	tick    uint64
	stopped bool
	moved   []object.ID
	stats   counters

	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	drainOnce sync.Once
}

type counters struct {
	enters       uint64
	leaves       uint64
	backPressure uint64
}

// Stats is a point-in-time summary of the engine.
type Stats struct {
	Registered          int
	Placed              int
	Dirty               int
	QueuedCommands      int
	QueuedEvents        int
	Ticks               uint64
	Enters              uint64
	Leaves              uint64
	BackPressureFlushes uint64
}

// New creates an engine. A nil sink discards events; a nil logger logs
// nothing.
func New(opts Options, sink Sink, log *zap.Logger) *Engine {
	if opts.ChunkSide <= 0 {
		opts.ChunkSide = DefaultOptions().ChunkSide
	}
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultOptions().TickRate
	}
	if opts.DefaultBounds == (world.Bounds{}) {
		opts.DefaultBounds = world.DefaultBounds
	}
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "awareness"))

	terrain := world.NewTerrainMap(opts.ChunkSide, opts.Planets)
	terrain.SetDefaultBounds(opts.DefaultBounds)

	e := &Engine{
		opts:     opts,
		limit:    opts.LoadRangeLimit(),
		log:      log,
		sink:     sink,
		terrain:  terrain,
		records:  arena.NewStore[object.ID, record](),
		sets:     arena.NewStore[object.ID, Set](),
		dirty:    arena.NewStore[object.ID, struct{}](),
		registry: arena.NewRegistry[object.ID](),
		claims:   make(map[object.ID]object.ID),
		waiting:  make(map[object.ID]map[object.ID]struct{}),
		runner:   coresys.NewRunner(log, opts.SlowPhase),
		commands: event.NewQueue[command](0),
		events:   event.NewQueue[Event](opts.HighWater),
		known:    make(map[object.ID]struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	e.registry.Register(e.records)
	e.registry.Register(e.sets)
	e.registry.Register(e.dirty)

	e.runner.Register(&inputSystem{e: e})
	e.runner.Register(&refreshSystem{e: e})
	e.runner.Register(&outputSystem{e: e})
	e.runner.Register(&cleanupSystem{e: e})
	return e
}

// ---- mutation API ----

// Register adds an entity. It gets a chunk in the next tick if it is on a
// planet.
func (e *Engine) Register(ent object.Entity) error {
	if ent == nil {
		return fmt.Errorf("register: nil entity: %w", ErrUnknownEntity)
	}
	id := ent.ID()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("register %d: %w", id, ErrShutdown)
	}
	if _, ok := e.known[id]; ok {
		return fmt.Errorf("register %d: %w", id, ErrDuplicateRegistration)
	}
	e.known[id] = struct{}{}
	e.commands.Push(command{op: opRegister, entity: ent})
	return nil
}

// Unregister removes an entity. The next tick emits the leave wave for it.
func (e *Engine) Unregister(ent object.Entity) error {
	return e.enqueue(opUnregister, ent)
}

func (e *Engine) NotifyPositionChanged(ent object.Entity) error {
	return e.enqueue(opPosition, ent)
}

func (e *Engine) NotifyParentChanged(ent object.Entity) error {
	return e.enqueue(opParent, ent)
}

func (e *Engine) NotifyLoadRangeChanged(ent object.Entity) error {
	return e.enqueue(opLoadRange, ent)
}

func (e *Engine) NotifyAwarenessEnabledChanged(ent object.Entity) error {
	return e.enqueue(opAwareness, ent)
}

func (e *Engine) enqueue(op opKind, ent object.Entity) error {
	if ent == nil {
		return fmt.Errorf("%s: nil entity: %w", op, ErrUnknownEntity)
	}
	id := ent.ID()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("%s %d: %w", op, id, ErrShutdown)
	}
	if _, ok := e.known[id]; !ok {
		return fmt.Errorf("%s %d: %w", op, id, ErrUnknownEntity)
	}
	if op == opUnregister {
		delete(e.known, id)
	}
	e.commands.Push(command{op: op, entity: ent})
	return nil
}

// ---- scheduling ----

// Tick advances the scheduler one step: apply queued mutations, refresh
// dirty observers, deliver events.
func (e *Engine) Tick() error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	if e.stopped {
		return ErrShutdown
	}
	e.tick++
	e.runner.Tick(e.opts.TickRate)
	return nil
}

// Run ticks the engine at the configured rate until ctx is done or
// Shutdown is called. Either way it drains the engine before returning.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.closed || e.running {
		e.mu.Unlock()
		return ErrShutdown
	}
	e.running = true
	e.mu.Unlock()
	defer close(e.done)

	e.log.Info("awareness scheduler started", zap.Duration("period", e.opts.TickRate))
	ticker := time.NewTicker(e.opts.TickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.beginShutdown()
			e.drain()
			return ctx.Err()
		case <-e.stop:
			e.drain()
			return nil
		case <-ticker.C:
			if err := e.Tick(); err != nil {
				return err
			}
		}
	}
}

// Shutdown rejects further mutations, discards queued ones, sends a leave
// for every live pair, then closes the sink. If Run is active the drain
// happens on its goroutine and Shutdown waits for it. Shutdown cannot be
// undone; calling it again is a no-op.
func (e *Engine) Shutdown() {
	if e.beginShutdown() {
		e.stopOnce.Do(func() { close(e.stop) })
		<-e.done
		return
	}
	e.drain()
}

func (e *Engine) beginShutdown() (running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		if n := e.commands.Discard(); n > 0 {
			e.log.Info("discarded queued mutations", zap.Int("count", n))
		}
	}
	return e.running
}

func (e *Engine) drain() {
	e.drainOnce.Do(func() {
		e.tickMu.Lock()
		defer e.tickMu.Unlock()
		e.commands.Discard()

		ids := e.sets.Keys()
		slices.Sort(ids)
		pairs := 0
		for _, o := range ids {
			set, _ := e.sets.Get(o)
			for _, t := range set.ids {
				e.emit(Leave, o, t)
				pairs++
			}
		}
		for _, o := range ids {
			set, _ := e.sets.Get(o)
			set.Clear()
		}
		e.flush()
		e.stopped = true

		if c, ok := e.sink.(Closer); ok {
			if err := c.Close(); err != nil {
				e.log.Warn("close sink", zap.Error(err))
			}
		}
		e.log.Info("awareness engine stopped",
			zap.Uint64("ticks", e.tick),
			zap.Int("leaves", pairs),
		)
	})
}

// ---- introspection ----
// These take the tick lock for reading and must not be called from a Sink.

// AwareOf returns the ids id is currently aware of, ascending.
func (e *Engine) AwareOf(id object.ID) []object.ID {
	e.tickMu.RLock()
	defer e.tickMu.RUnlock()
	if s, ok := e.sets.Get(id); ok && s.Len() > 0 {
		return s.IDs()
	}
	return nil
}

// IsAware reports whether target is in observer's awareness set.
func (e *Engine) IsAware(observer, target object.ID) bool {
	e.tickMu.RLock()
	defer e.tickMu.RUnlock()
	s, ok := e.sets.Get(observer)
	return ok && s.Has(target)
}

// State returns the lifecycle state of id as of the last tick.
func (e *Engine) State(id object.ID) State {
	e.tickMu.RLock()
	defer e.tickMu.RUnlock()
	if r, ok := e.records.Get(id); ok {
		return r.state
	}
	return StateUnregistered
}

// Snapshot returns the subject published for id by the last tick.
func (e *Engine) Snapshot(id object.ID) (*rule.Subject, bool) {
	e.tickMu.RLock()
	defer e.tickMu.RUnlock()
	r, ok := e.records.Get(id)
	if !ok {
		return nil, false
	}
	return r.subject, true
}

// Terrain exposes the chunk grid for read-only queries.
func (e *Engine) Terrain() *world.TerrainMap { return e.terrain }

func (e *Engine) Stats() Stats {
	e.tickMu.RLock()
	defer e.tickMu.RUnlock()
	return Stats{
		Registered:          e.records.Len(),
		Placed:              e.terrain.Len(),
		Dirty:               e.dirty.Len(),
		QueuedCommands:      e.commands.Len(),
		QueuedEvents:        e.events.Len(),
		Ticks:               e.tick,
		Enters:              e.stats.enters,
		Leaves:              e.stats.leaves,
		BackPressureFlushes: e.stats.backPressure,
	}
}
