package random_test

import (
	"encoding/hex"
	"testing"

	"github.com/artpar/trustmeter/adapters/random"
)

func TestReal_Hex(t *testing.T) {
	r := random.Real{}

	s, err := r.Hex(32)
	if err != nil {
		t.Fatalf("Hex: %v", err)
	}
	if len(s) != 64 {
		t.Errorf("len = %d, want 64", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Errorf("Hex returned non-hex %q", s)
	}

	seen := map[string]bool{s: true}
	for i := 0; i < 100; i++ {
		v, _ := r.Hex(32)
		if seen[v] {
			t.Fatalf("duplicate value %s", v)
		}
		seen[v] = true
	}
}

func TestFake_Hex(t *testing.T) {
	f := random.NewFake("n1", "n2")

	for _, want := range []string{"n1", "n2"} {
		got, _ := f.Hex(32)
		if got != want {
			t.Errorf("Hex = %q, want %q", got, want)
		}
	}

	a, _ := f.Hex(2)
	b, _ := f.Hex(2)
	if a != "0101" || b != "0202" {
		t.Errorf("generated values = %q, %q, want 0101, 0202", a, b)
	}
}
