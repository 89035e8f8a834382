package arena

// Removable is implemented by every store so the Registry can drop an
// object's data from all of them at once.
type Removable[K comparable] interface {
	Remove(id K)
}

// Store is a generic typed map store keyed by object id.
type Store[K comparable, T any] struct {
	data map[K]*T
}

func NewStore[K comparable, T any]() *Store[K, T] {
	return &Store[K, T]{
		data: make(map[K]*T, 256),
	}
}

func (s *Store[K, T]) Set(id K, v *T) {
	s.data[id] = v
}

func (s *Store[K, T]) Get(id K) (*T, bool) {
	v, ok := s.data[id]
	return v, ok
}

func (s *Store[K, T]) Remove(id K) {
	delete(s.data, id)
}

func (s *Store[K, T]) Has(id K) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[K, T]) Len() int {
	return len(s.data)
}

// Keys returns the ids currently stored, in map order.
func (s *Store[K, T]) Keys() []K {
	out := make([]K, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	return out
}

// Clear drops every entry.
func (s *Store[K, T]) Clear() {
	clear(s.data)
}
