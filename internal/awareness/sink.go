package awareness

import (
	"errors"

	"github.com/swgo/server/internal/object"
)

// Sink consumes awareness transitions. Methods are only ever called from
// the scheduler goroutine while a tick is in progress, so a Sink must not
// call the engine's introspection methods; mutation calls are fine.
type Sink interface {
	OnEnter(observer, target object.ID)
	OnLeave(observer, target object.ID)
}

// Batcher is implemented by sinks that want to know where one delivery
// batch starts and ends. BeginBatch receives the tick the events belong to.
type Batcher interface {
	BeginBatch(tick uint64)
	EndBatch()
}

// Closer is implemented by sinks that hold resources. Close is called once,
// after the shutdown leave wave has been delivered.
type Closer interface {
	Close() error
}

// SinkFuncs adapts a pair of functions to Sink. Nil functions are skipped.
type SinkFuncs struct {
	Enter func(observer, target object.ID)
	Leave func(observer, target object.ID)
}

func (f SinkFuncs) OnEnter(observer, target object.ID) {
	if f.Enter != nil {
		f.Enter(observer, target)
	}
}

func (f SinkFuncs) OnLeave(observer, target object.ID) {
	if f.Leave != nil {
		f.Leave(observer, target)
	}
}

// MultiSink delivers every event to each sink in order.
type MultiSink []Sink

func (m MultiSink) OnEnter(observer, target object.ID) {
	for _, s := range m {
		s.OnEnter(observer, target)
	}
}

func (m MultiSink) OnLeave(observer, target object.ID) {
	for _, s := range m {
		s.OnLeave(observer, target)
	}
}

func (m MultiSink) BeginBatch(tick uint64) {
	for _, s := range m {
		if b, ok := s.(Batcher); ok {
			b.BeginBatch(tick)
		}
	}
}

func (m MultiSink) EndBatch() {
	for _, s := range m {
		if b, ok := s.(Batcher); ok {
			b.EndBatch()
		}
	}
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

type nopSink struct{}

func (nopSink) OnEnter(object.ID, object.ID) {}
func (nopSink) OnLeave(object.ID, object.ID) {}
