package slab

import "testing"

func TestInsertGetRemove(t *testing.T) {
	s := New[string]()

	k := s.VacantEntry()
	s.Insert(k, "a")

	got, ok := s.Get(k)
	if !ok || got != "a" {
		t.Fatalf("Get(%d) = %q, %v, want a, true", k, got, ok)
	}

	v, ok := s.TryRemove(k)
	if !ok || v != "a" {
		t.Fatalf("TryRemove(%d) = %q, %v, want a, true", k, v, ok)
	}
	if _, ok := s.Get(k); ok {
		t.Fatalf("Get(%d) after remove = ok, want not found", k)
	}
}

func TestKeyReuse(t *testing.T) {
	s := New[int]()

	k0 := s.VacantEntry()
	s.Insert(k0, 10)
	k1 := s.VacantEntry()
	s.Insert(k1, 20)

	if _, ok := s.TryRemove(k0); !ok {
		t.Fatalf("TryRemove(%d) failed", k0)
	}

	k2 := s.VacantEntry()
	if k2 != k0 {
		t.Fatalf("VacantEntry reused key = %d, want %d", k2, k0)
	}
	s.Insert(k2, 30)

	if v, ok := s.Get(k1); !ok || v != 20 {
		t.Fatalf("unrelated key %d disturbed: got %d, %v", k1, v, ok)
	}
	if v, ok := s.Get(k2); !ok || v != 30 {
		t.Fatalf("Get(%d) = %d, %v, want 30, true", k2, v, ok)
	}
}

func TestLen(t *testing.T) {
	s := New[int]()
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}

	k0 := s.VacantEntry()
	s.Insert(k0, 1)
	k1 := s.VacantEntry()
	s.Insert(k1, 2)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	s.TryRemove(k0)
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestTryRemoveUnknownKey(t *testing.T) {
	s := New[int]()
	if _, ok := s.TryRemove(42); ok {
		t.Fatalf("TryRemove of unknown key succeeded")
	}
	if _, ok := s.TryRemove(-1); ok {
		t.Fatalf("TryRemove of negative key succeeded")
	}
}
