package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/swgo/server/internal/awareness"
	"github.com/swgo/server/internal/config"
	"github.com/swgo/server/internal/data"
	"github.com/swgo/server/internal/feed"
	"github.com/swgo/server/internal/object"
	"github.com/swgo/server/internal/world"
)

type deletes struct{ ids []object.ID }

func (d *deletes) Delete(_ context.Context, id object.ID) error {
	d.ids = append(d.ids, id)
	return nil
}

func TestObjectStoreDestroy(t *testing.T) {
	rec := awareness.NewRecorder()
	e := awareness.New(awareness.DefaultOptions(), rec, zaptest.NewLogger(t))

	cell := object.New(10, object.KindCell)
	cell.SetPosition(object.PlanetTatooine, 0, 0, 0)
	inside := object.NewCreature(11, object.PlanetTatooine, 1, 0, 0, 20)
	cell.AddChild(inside)
	outside := object.NewCreature(1, object.PlanetTatooine, 5, 0, 0, 50)
	objs := []*object.Object{cell, inside, outside}
	for _, o := range objs {
		if err := e.Register(o); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Tick(); err != nil {
		t.Fatal(err)
	}
	if !e.IsAware(1, 10) {
		t.Fatalf("setup: 1 not aware of the cell")
	}

	repo := &deletes{}
	s := newObjectStore(e, repo, zaptest.NewLogger(t))
	s.adopt(objs)

	if err := s.destroy(context.Background(), 10); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, has := inside.Parent(); has {
		t.Fatalf("contents still point at the destroyed cell")
	}
	if err := e.Tick(); err != nil {
		t.Fatal(err)
	}
	if e.State(10) != awareness.StateUnregistered || e.IsAware(1, 10) {
		t.Fatalf("destroyed cell still tracked")
	}
	if !e.IsAware(1, 11) {
		t.Fatalf("released occupant no longer perceived")
	}
	if len(repo.ids) != 1 || repo.ids[0] != 10 || s.len() != 2 {
		t.Fatalf("deleted %v, %d left", repo.ids, s.len())
	}

	if err := s.destroy(context.Background(), 10); !errors.Is(err, errNoObject) {
		t.Fatalf("second destroy: %v", err)
	}
}

func TestObjectStoreRefusedDestroyKeepsLinks(t *testing.T) {
	e := awareness.New(awareness.DefaultOptions(), awareness.NewRecorder(), zaptest.NewLogger(t))
	building := object.New(20, object.KindBuilding)
	building.SetPosition(object.PlanetTatooine, 0, 0, 0)
	cell := object.New(21, object.KindCell)
	building.AddChild(cell)
	player := object.NewCreature(22, object.PlanetTatooine, 1, 0, 0, 30)
	cell.AddChild(player)
	objs := []*object.Object{building, cell, player}
	for _, o := range objs {
		if err := e.Register(o); err != nil {
			t.Fatal(err)
		}
	}
	repo := &deletes{}
	s := newObjectStore(e, repo, zaptest.NewLogger(t))
	s.adopt(objs)
	e.Shutdown()

	if err := s.destroy(context.Background(), 21); !errors.Is(err, awareness.ErrShutdown) {
		t.Fatalf("destroy after shutdown: %v", err)
	}
	if pid, has := cell.Parent(); !has || pid != 20 {
		t.Fatalf("cell detached from its building")
	}
	if pid, has := player.Parent(); !has || pid != 21 {
		t.Fatalf("player released from a cell that still exists")
	}
	if s.len() != 3 || len(repo.ids) != 0 {
		t.Fatalf("store holds %d objects, deleted %v", s.len(), repo.ids)
	}
}

func TestObjectsRouteOnFeedListener(t *testing.T) {
	e := awareness.New(awareness.DefaultOptions(), awareness.NewRecorder(), zaptest.NewLogger(t))
	o := object.NewCreature(7, object.PlanetTatooine, 0, 0, 0, 10)
	if err := e.Register(o); err != nil {
		t.Fatal(err)
	}
	s := newObjectStore(e, nil, zaptest.NewLogger(t))
	s.adopt([]*object.Object{o})

	hub := feed.NewHub(4, time.Second, zaptest.NewLogger(t))
	hub.Handle(objectsRoute, s)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	del := func(path string) int {
		t.Helper()
		req, err := http.NewRequest(http.MethodDelete, srv.URL+path, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	tests := []struct {
		path string
		want int
	}{
		{"/objects/abc", http.StatusBadRequest},
		{"/objects/7", http.StatusNoContent},
		{"/objects/7", http.StatusNotFound},
	}
	for _, tt := range tests {
		if got := del(tt.path); got != tt.want {
			t.Fatalf("DELETE %s = %d, want %d", tt.path, got, tt.want)
		}
	}
	if err := e.Tick(); err != nil {
		t.Fatal(err)
	}
	if e.State(7) != awareness.StateUnregistered {
		t.Fatalf("object 7 still registered")
	}

	e.Shutdown()
	o2 := object.NewCreature(8, object.PlanetTatooine, 0, 0, 0, 10)
	s.adopt([]*object.Object{o2})
	if got := del("/objects/8"); got != http.StatusServiceUnavailable {
		t.Fatalf("DELETE after shutdown = %d", got)
	}
}

func TestEngineOptionsFromShippedConfig(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "config", "server.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	planets, err := data.LoadPlanetTable(filepath.Join("..", "..", "data", "yaml", "planets.yaml"))
	if err != nil {
		t.Fatalf("load planets: %v", err)
	}
	opts := engineOptions(cfg.Awareness, planets)
	if opts.ChunkSide != 512 || opts.LoadRangeLimit() != 400 || opts.TickRate != 50*time.Millisecond {
		t.Fatalf("options = %+v", opts)
	}
	if opts.DefaultBounds != (world.Bounds{MinX: -8192, MaxX: 8192, MinY: -8192, MaxY: 8192}) {
		t.Fatalf("default bounds = %+v", opts.DefaultBounds)
	}
	if _, ok := opts.Planets[object.PlanetTatooine]; !ok {
		t.Fatalf("planet table bounds missing")
	}
}
