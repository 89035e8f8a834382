package awareness

import (
	"errors"
	"testing"

	"github.com/swgo/server/internal/object"
)

type failingCloser struct{ Recorder }

func (f *failingCloser) Close() error { return errors.New("boom") }

func TestMultiSinkFansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	var enters, leaves int
	funcs := SinkFuncs{
		Enter: func(object.ID, object.ID) { enters++ },
		Leave: func(object.ID, object.ID) { leaves++ },
	}
	m := MultiSink{a, b, funcs, SinkFuncs{}}
	m.BeginBatch(7)
	m.OnEnter(1, 2)
	m.OnLeave(1, 2)
	m.EndBatch()

	for _, r := range []*Recorder{a, b} {
		evs := r.Events()
		if len(evs) != 2 || evs[0] != (Event{Enter, 1, 2, 7}) || evs[1] != (Event{Leave, 1, 2, 7}) {
			t.Fatalf("recorded %v", evs)
		}
	}
	if enters != 1 || leaves != 1 {
		t.Fatalf("funcs saw %d enters, %d leaves", enters, leaves)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !a.Closed() || !b.Closed() {
		t.Fatalf("recorders not closed")
	}
}

func TestMultiSinkJoinsCloseErrors(t *testing.T) {
	m := MultiSink{NewRecorder(), &failingCloser{}}
	if err := m.Close(); err == nil {
		t.Fatalf("close error swallowed")
	}
}

func TestRecorderLive(t *testing.T) {
	r := NewRecorder()
	r.OnEnter(1, 2)
	r.OnEnter(2, 1)
	r.OnLeave(1, 2)
	live := r.Live()
	if len(live) != 1 {
		t.Fatalf("live = %v", live)
	}
	if _, ok := live[Pair{Observer: 2, Target: 1}]; !ok {
		t.Fatalf("live = %v, want (2,1)", live)
	}
	if n := len(r.Take()); n != 3 || len(r.Events()) != 0 {
		t.Fatalf("take returned %d", n)
	}
}
