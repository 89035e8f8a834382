package arena

// Registry tracks all stores and supports bulk cleanup when an object leaves
// the arena.
type Registry[K comparable] struct {
	stores []Removable[K]
}

func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{
		stores: make([]Removable[K], 0, 8),
	}
}

// Register adds a store to the registry.
func (r *Registry[K]) Register(store Removable[K]) {
	r.stores = append(r.stores, store)
}

// RemoveAll clears the given id from every registered store.
func (r *Registry[K]) RemoveAll(id K) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}
