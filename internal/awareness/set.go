package awareness

import (
	"slices"

	"github.com/swgo/server/internal/object"
)

// Set is one observer's awareness set. Members are kept sorted so diffs
// and the events derived from them are reproducible run to run.
type Set struct {
	ids   []object.ID
	index map[object.ID]struct{}
}

func newSet() *Set {
	return &Set{index: make(map[object.ID]struct{})}
}

func (s *Set) Len() int { return len(s.ids) }

func (s *Set) Has(id object.ID) bool {
	_, ok := s.index[id]
	return ok
}

// Add inserts id and reports whether it was absent.
func (s *Set) Add(id object.ID) bool {
	if s.Has(id) {
		return false
	}
	s.index[id] = struct{}{}
	i, _ := slices.BinarySearch(s.ids, id)
	s.ids = slices.Insert(s.ids, i, id)
	return true
}

// Remove deletes id and reports whether it was present.
func (s *Set) Remove(id object.ID) bool {
	if !s.Has(id) {
		return false
	}
	delete(s.index, id)
	if i, ok := slices.BinarySearch(s.ids, id); ok {
		s.ids = slices.Delete(s.ids, i, i+1)
	}
	return true
}

// IDs returns the members in ascending order.
func (s *Set) IDs() []object.ID {
	return slices.Clone(s.ids)
}

func (s *Set) Clear() {
	s.ids = s.ids[:0]
	clear(s.index)
}

// Diff compares the set with next, which must be sorted and free of
// duplicates. leaves are members missing from next, enters are ids of next
// missing from the set; both come out ascending.
func (s *Set) Diff(next []object.ID) (leaves, enters []object.ID) {
	i, j := 0, 0
	for i < len(s.ids) && j < len(next) {
		a, b := s.ids[i], next[j]
		switch {
		case a == b:
			i++
			j++
		case a < b:
			leaves = append(leaves, a)
			i++
		default:
			enters = append(enters, b)
			j++
		}
	}
	leaves = append(leaves, s.ids[i:]...)
	enters = append(enters, next[j:]...)
	return leaves, enters
}
