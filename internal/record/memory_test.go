package record

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(Record{ID: "r1", Text: "profile", Attributes: map[string]string{"name": "Kim"}})

	first, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	first.Attributes["name"] = "mutated"

	second, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if second.Attributes["name"] != "Kim" {
		t.Error("Get should return a copy, not shared attribute state")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ExistsByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(Record{ID: "r1", Text: "x"})

	ok, err := s.ExistsByID(ctx, "r1")
	if err != nil || !ok {
		t.Errorf("expected r1 to exist, got ok=%v err=%v", ok, err)
	}
	ok, err = s.ExistsByID(ctx, "r2")
	if err != nil || ok {
		t.Errorf("expected r2 to be absent, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_ListAllIDsSorted(t *testing.T) {
	s := NewMemoryStore()
	for _, id := range []string{"c", "a", "b"} {
		s.Put(Record{ID: id, Text: id})
	}

	ids, err := s.ListAllIDs(context.Background())
	if err != nil {
		t.Fatalf("ListAllIDs failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("expected sorted ids, got %v", ids)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	s.Put(Record{ID: "r1", Text: "x"})
	s.Delete("r1")

	if _, err := s.Get(context.Background(), "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
