package persist

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/swgo/server/internal/awareness"
	"github.com/swgo/server/internal/object"
)

func i64(v int64) *int64 { return &v }
func f64(v float64) *float64 { return &v }

func rowIDs(rows []ObjectRow) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOrderForReplayContainersFirst(t *testing.T) {
	rows := []ObjectRow{
		{ID: 30, Kind: "creature", ParentID: i64(20)},
		{ID: 20, Kind: "cell", ParentID: i64(10)},
		{ID: 5, Kind: "creature"},
		{ID: 10, Kind: "building"},
		{ID: 21, Kind: "cell", ParentID: i64(10)},
	}
	ordered, orphans := OrderForReplay(rows)
	if want := []int64{5, 10, 20, 21, 30}; !sameIDs(rowIDs(ordered), want) {
		t.Fatalf("order = %v, want %v", rowIDs(ordered), want)
	}
	if len(orphans) != 0 {
		t.Fatalf("unexpected orphans %v", orphans)
	}
}

func TestOrderForReplayBrokenParents(t *testing.T) {
	rows := []ObjectRow{
		{ID: 1, Kind: "cell", ParentID: i64(2)},
		{ID: 2, Kind: "cell", ParentID: i64(1)},
		{ID: 3, Kind: "creature", ParentID: i64(99)},
		{ID: 4, Kind: "creature", ParentID: i64(4)},
	}
	ordered, orphans := OrderForReplay(rows)
	if want := []int64{1, 3, 4}; !sameIDs(orphans, want) {
		t.Fatalf("orphans = %v, want %v", orphans, want)
	}
	for _, r := range ordered {
		switch r.ID {
		case 1, 3, 4:
			if r.ParentID != nil {
				t.Fatalf("orphan %d kept parent %d", r.ID, *r.ParentID)
			}
		case 2:
			if r.ParentID == nil || *r.ParentID != 1 {
				t.Fatalf("row 2 lost its parent")
			}
		}
	}
	if want := []int64{1, 3, 4, 2}; !sameIDs(rowIDs(ordered), want) {
		t.Fatalf("order = %v, want %v", rowIDs(ordered), want)
	}
}

func TestBuildObjects(t *testing.T) {
	rows := []ObjectRow{
		{ID: 10, Kind: "cell", Planet: "tatooine", X: 100, Y: 100, InstanceKind: 1, InstanceNumber: 2, Awareness: true},
		{ID: 11, Kind: "creature", Planet: "naboo", X: 101, Y: 99, ParentID: i64(10), LoadRange: f64(25), Awareness: true},
		{ID: 12, Kind: "dragon", Planet: "tatooine"},
		{ID: 13, Kind: "static", Template: "object/static/shared_tree.iff", Planet: "tatooine"},
	}
	ordered, _ := OrderForReplay(rows)
	var asked []int64
	objs, err := BuildObjects(ordered, func(r ObjectRow, kind object.Kind) float64 {
		asked = append(asked, r.ID)
		if kind == object.KindStatic {
			return 150
		}
		return 0
	})
	if err == nil {
		t.Fatalf("unknown kind not reported")
	}
	if len(objs) != 3 {
		t.Fatalf("built %d objects, want 3", len(objs))
	}
	if !sameIDs(asked, []int64{10, 13}) {
		t.Fatalf("defaults asked for %v", asked)
	}

	byID := make(map[object.ID]*object.Object)
	for _, o := range objs {
		byID[o.ID()] = o
	}
	child := byID[11]
	if pid, ok := child.Parent(); !ok || pid != 10 {
		t.Fatalf("child not linked to its cell")
	}
	// Contents take the container's planet and instance.
	if child.Planet() != object.PlanetTatooine || child.Instance() != (object.Instance{Kind: object.InstanceBuildout, Number: 2}) {
		t.Fatalf("child placement = %s %v", child.Planet(), child.Instance())
	}
	if child.LoadRange() != 25 {
		t.Fatalf("stored range ignored: %v", child.LoadRange())
	}
	if byID[13].LoadRange() != 150 || byID[13].AwarenessEnabled() {
		t.Fatalf("static built wrong: range %v enabled %v", byID[13].LoadRange(), byID[13].AwarenessEnabled())
	}
	if byID[13].Template() != "object/static/shared_tree.iff" {
		t.Fatalf("template lost")
	}
}

type failingRegistrar struct {
	failAt object.ID
	seen   []object.ID
}

func (f *failingRegistrar) Register(ent object.Entity) error {
	if ent.ID() == f.failAt {
		return awareness.ErrDuplicateRegistration
	}
	f.seen = append(f.seen, ent.ID())
	return nil
}

func TestReplayStopsOnRegisterError(t *testing.T) {
	rows := []ObjectRow{
		{ID: 1, Kind: "creature", Planet: "tatooine", Awareness: true},
		{ID: 2, Kind: "creature", Planet: "tatooine", Awareness: true},
		{ID: 3, Kind: "creature", Planet: "tatooine", Awareness: true},
	}
	reg := &failingRegistrar{failAt: 2}
	got, err := Replay(rows, reg, nil, zaptest.NewLogger(t))
	if !errors.Is(err, awareness.ErrDuplicateRegistration) {
		t.Fatalf("err = %v", err)
	}
	if len(got) != 1 || got[0].ID() != 1 {
		t.Fatalf("registered %v", reg.seen)
	}
}

func TestReplayIntoEngine(t *testing.T) {
	rows := []ObjectRow{
		{ID: 11, Kind: "creature", Planet: "tatooine", X: 100, Y: 100, ParentID: i64(10), LoadRange: f64(25), Awareness: true},
		{ID: 10, Kind: "cell", Planet: "tatooine", X: 100, Y: 100, LoadRange: f64(0), Awareness: true},
		{ID: 1, Kind: "creature", Planet: "tatooine", X: 110, Y: 100, LoadRange: f64(50), Awareness: true},
	}
	rec := awareness.NewRecorder()
	e := awareness.New(awareness.DefaultOptions(), rec, zaptest.NewLogger(t))
	objs, err := Replay(rows, e, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(objs) != 3 {
		t.Fatalf("registered %d objects", len(objs))
	}
	if err := e.Tick(); err != nil {
		t.Fatal(err)
	}
	// The cell inherits 25 from its occupant, so the creature 10m away sees
	// both the cell and the occupant.
	if !e.IsAware(1, 10) || !e.IsAware(1, 11) || !e.IsAware(10, 11) {
		t.Fatalf("replayed world not perceived: 1 -> %v, 10 -> %v", e.AwareOf(1), e.AwareOf(10))
	}
	e.Shutdown()
}
