package entities

import (
	"context"
	"testing"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry("book", "author", "")

	if !reg.IsEntityType("book") || !reg.IsEntityType("author") {
		t.Error("seeded types missing")
	}
	if reg.IsEntityType("") {
		t.Error("empty name must never register")
	}
	if reg.IsEntityType("publisher") {
		t.Error("unregistered type reported as present")
	}

	reg.Register("publisher")
	reg.Register("publisher") // duplicate is a no-op
	reg.Register("")

	types := reg.Types()
	want := []string{"author", "book", "publisher"}
	if len(types) != len(want) {
		t.Fatalf("Types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Types[%d] = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource()
	src.Add(Record{Type: "book", ID: "b1"})
	src.Add(Record{Type: "book", ID: "b2"})
	src.Add(Record{Type: "author", ID: "a1"})

	books, err := src.List(context.Background(), "book")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}

	none, err := src.List(context.Background(), "publisher")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no publishers, got %d", len(none))
	}
}
