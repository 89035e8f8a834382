package world

import (
	"errors"
	"fmt"

	"github.com/sasha-s/go-deadlock"
	"github.com/swgo/server/internal/object"
	"github.com/swgo/server/internal/rule"
)

// ErrDuplicateMember is returned by Chunk.Add for an object already inside.
var ErrDuplicateMember = errors.New("duplicate chunk member")

// Chunk is a bucket of objects whose anchor lies inside one fixed square of
// a planet. Members are immutable snapshots, so a reader holding the read
// lock always sees a whole chunk: an object is either in it or not.
type Chunk struct {
	mu      deadlock.RWMutex
	members map[object.ID]*rule.Subject
}

func NewChunk() *Chunk {
	return &Chunk{
		members: make(map[object.ID]*rule.Subject),
	}
}

// Add inserts a member.
func (c *Chunk) Add(s *rule.Subject) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[s.ID]; ok {
		return fmt.Errorf("object %d: %w", s.ID, ErrDuplicateMember)
	}
	c.members[s.ID] = s
	return nil
}

// Remove deletes a member. Removing an absent object is a no-op.
func (c *Chunk) Remove(id object.ID) {
	c.mu.Lock()
	delete(c.members, id)
	c.mu.Unlock()
}

// Replace swaps in a newer snapshot of an existing member. It reports false
// if the object is not a member.
func (c *Chunk) Replace(s *rule.Subject) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[s.ID]; !ok {
		return false
	}
	c.members[s.ID] = s
	return true
}

func (c *Chunk) Contains(id object.ID) bool {
	c.mu.RLock()
	_, ok := c.members[id]
	c.mu.RUnlock()
	return ok
}

func (c *Chunk) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// WithinAwareness returns every member the observer is aware of, excluding
// the observer itself. The result is unordered.
func (c *Chunk) WithinAwareness(observer *rule.Subject) []*rule.Subject {
	return c.appendAware(nil, observer)
}

func (c *Chunk) appendAware(dst []*rule.Subject, observer *rule.Subject) []*rule.Subject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.members {
		if rule.Aware(observer, m) {
			dst = append(dst, m)
		}
	}
	return dst
}

func (c *Chunk) appendMembers(dst []*rule.Subject, observer *rule.Subject) []*rule.Subject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, m := range c.members {
		if id != observer.ID {
			dst = append(dst, m)
		}
	}
	return dst
}

// Members returns a copy of the current members.
func (c *Chunk) Members() []*rule.Subject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*rule.Subject, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m)
	}
	return out
}
