package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/swgo/server/internal/awareness"
	"github.com/swgo/server/internal/object"
)

// objectsRoute destroys one object by id. It is mounted on the feed listener.
const objectsRoute = "DELETE /objects/{id}"

var errNoObject = errors.New("no such object")

// awarenessEngine is the slice of the awareness engine the store drives.
type awarenessEngine interface {
	Unregister(ent object.Entity) error
	NotifyParentChanged(ent object.Entity) error
}

// objectDeleter removes persisted rows. Nil when the database is disabled.
type objectDeleter interface {
	Delete(ctx context.Context, id object.ID) error
}

// objectStore keeps the live object graph built at startup and destroys
// objects on server command.
type objectStore struct {
	engine awarenessEngine
	repo   objectDeleter
	log    *zap.Logger

	mu   sync.Mutex
	objs map[object.ID]*object.Object
}

func newObjectStore(engine awarenessEngine, repo objectDeleter, log *zap.Logger) *objectStore {
	return &objectStore{
		engine: engine,
		repo:   repo,
		log:    log,
		objs:   make(map[object.ID]*object.Object),
	}
}

func (s *objectStore) adopt(objs []*object.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range objs {
		s.objs[o.ID()] = o
	}
}

func (s *objectStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objs)
}

// destroy removes an object from the world: it leaves its container, the
// engine emits its leave wave on the next tick, and its row is deleted.
// Contents of a destroyed container are kept as top-level objects. Nothing
// changes when the engine refuses the unregistration.
func (s *objectStore) destroy(ctx context.Context, id object.ID) error {
	s.mu.Lock()
	o, ok := s.objs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("destroy %d: %w", id, errNoObject)
	}
	if err := s.engine.Unregister(o); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("destroy %d: %w", id, err)
	}
	delete(s.objs, id)
	if pid, has := o.Parent(); has {
		if p := s.objs[pid]; p != nil {
			p.RemoveChild(o)
		}
	}
	released := 0
	for _, cid := range o.Children() {
		c := s.objs[cid]
		if c == nil {
			continue
		}
		o.RemoveChild(c)
		released++
		if err := s.engine.NotifyParentChanged(c); err != nil {
			s.log.Warn("released object not resynced", zap.Uint64("id", uint64(cid)), zap.Error(err))
		}
	}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
	}
	s.log.Info("object destroyed", zap.Uint64("id", uint64(id)), zap.Int("released", released))
	return nil
}

// ServeHTTP handles objectsRoute.
func (s *objectStore) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(rw, "bad object id", http.StatusBadRequest)
		return
	}
	err = s.destroy(r.Context(), object.ID(n))
	switch {
	case err == nil:
		rw.WriteHeader(http.StatusNoContent)
	case errors.Is(err, errNoObject):
		http.Error(rw, err.Error(), http.StatusNotFound)
	case errors.Is(err, awareness.ErrShutdown):
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
	default:
		s.log.Error("destroy failed", zap.Uint64("id", n), zap.Error(err))
		http.Error(rw, err.Error(), http.StatusInternalServerError)
	}
}
