package xid

import (
	"strings"
	"testing"
)

func TestNewCarriesPrefix(t *testing.T) {
	id := New("order")
	if !strings.HasPrefix(id, "order-") {
		t.Fatalf("id = %s, want order- prefix", id)
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New("p")
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
