package arena

import "testing"

type pos struct{ x, y float64 }
type tag struct{ name string }

func TestStoreBasics(t *testing.T) {
	s := NewStore[uint64, pos]()
	s.Set(1, &pos{1, 2})
	s.Set(2, &pos{3, 4})
	if !s.Has(1) || s.Len() != 2 {
		t.Fatalf("store lost entries")
	}
	p, ok := s.Get(2)
	if !ok || p.x != 3 {
		t.Fatalf("Get(2) = %v, %v", p, ok)
	}
	s.Remove(1)
	s.Remove(1)
	if s.Has(1) || s.Len() != 1 {
		t.Fatalf("remove failed")
	}
	keys := s.Keys()
	if len(keys) != 1 || keys[0] != 2 {
		t.Fatalf("keys = %v", keys)
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("clear failed")
	}
}

func TestRegistryRemoveAll(t *testing.T) {
	a := NewStore[uint64, pos]()
	b := NewStore[uint64, tag]()
	r := NewRegistry[uint64]()
	r.Register(a)
	r.Register(b)

	a.Set(1, &pos{})
	b.Set(1, &tag{})
	a.Set(2, &pos{})

	r.RemoveAll(1)
	if a.Has(1) || b.Has(1) {
		t.Fatalf("RemoveAll left data behind")
	}
	if !a.Has(2) {
		t.Fatalf("RemoveAll touched another id")
	}
	r.RemoveAll(3) // unknown ids are fine
}
