package document

import (
	"strings"
	"testing"
)

func TestNewObjectID(t *testing.T) {
	id := NewObjectID()

	if id.IsZero() {
		t.Error("Expected non-zero ObjectID")
	}
	if len(id.Hex()) != 24 {
		t.Errorf("Expected 24 character hex string, got %d", len(id.Hex()))
	}
}

func TestObjectIDUniqueness(t *testing.T) {
	seen := make(map[ObjectID]bool)
	for i := 0; i < 1000; i++ {
		id := NewObjectID()
		if seen[id] {
			t.Fatalf("Duplicate ObjectID %s after %d ids", id, i)
		}
		seen[id] = true
	}
}

func TestObjectIDFromHex(t *testing.T) {
	original := NewObjectID()

	parsed, err := ObjectIDFromHex(original.Hex())
	if err != nil {
		t.Fatalf("Failed to parse hex: %v", err)
	}
	if parsed != original {
		t.Error("Parsed ObjectID doesn't match original")
	}

	if _, err := ObjectIDFromHex("abc"); err == nil {
		t.Error("Expected error for short hex string")
	}
	if _, err := ObjectIDFromHex(strings.Repeat("z", 24)); err == nil {
		t.Error("Expected error for invalid hex characters")
	}
}

func TestObjectIDMarshalJSON(t *testing.T) {
	id := NewObjectID()
	b, err := id.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(b) != `"`+id.Hex()+`"` {
		t.Errorf("Unexpected JSON %s", b)
	}
}
