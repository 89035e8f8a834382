package awareness

import (
	"sync"

	"github.com/swgo/server/internal/object"
)

// Recorder is a Sink that keeps every event in delivery order.
type Recorder struct {
	mu     sync.Mutex
	tick   uint64
	events []Event
	closed bool
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnEnter(observer, target object.ID) { r.add(Enter, observer, target) }
func (r *Recorder) OnLeave(observer, target object.ID) { r.add(Leave, observer, target) }

func (r *Recorder) add(kind EventKind, observer, target object.ID) {
	r.mu.Lock()
	r.events = append(r.events, Event{Kind: kind, Observer: observer, Target: target, Tick: r.tick})
	r.mu.Unlock()
}

func (r *Recorder) BeginBatch(tick uint64) {
	r.mu.Lock()
	r.tick = tick
	r.mu.Unlock()
}

func (r *Recorder) EndBatch() {}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Closed reports whether the stream was closed.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Take returns everything recorded since the last Take and forgets it.
func (r *Recorder) Take() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Live replays the whole history and returns the pairs whose last event is
// an enter.
func (r *Recorder) Live() map[Pair]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := make(map[Pair]struct{})
	for _, ev := range r.events {
		p := Pair{Observer: ev.Observer, Target: ev.Target}
		if ev.Kind == Enter {
			live[p] = struct{}{}
		} else {
			delete(live, p)
		}
	}
	return live
}
