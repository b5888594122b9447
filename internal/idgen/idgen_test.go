package idgen

import (
	"regexp"
	"testing"
)

func TestFact_PrefixAndLength(t *testing.T) {
	id, err := Fact()
	if err != nil {
		t.Fatalf("Fact() error: %v", err)
	}
	wantLen := len(FactPrefix) + Length
	if len(id) != wantLen {
		t.Errorf("Fact() length = %d, want %d (id=%q)", len(id), wantLen, id)
	}
	if id[:len(FactPrefix)] != FactPrefix {
		t.Errorf("Fact() = %q, want prefix %q", id, FactPrefix)
	}
}

func TestGenerateWithPrefix_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^cus-[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := Customer()
		if err != nil {
			t.Fatalf("Customer() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("Customer() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestGenerateWithPrefix_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := Item()
		if err != nil {
			t.Fatalf("Item() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}
