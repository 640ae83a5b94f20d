package core

import (
	"errors"
	"testing"
)

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"reports/abc/json", "a", "reports/2026-10-18/stand.csv"} {
		if err := ValidateKey(key); err != nil {
			t.Fatalf("ValidateKey(%q): %v", key, err)
		}
	}
	for _, key := range []string{"", "  ", "/etc/passwd", "../x", "a/../b", "a//b", "a/./b", `a\b`, "a/"} {
		if err := ValidateKey(key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("ValidateKey(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestCloneMetadata(t *testing.T) {
	if CloneMetadata(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	in := map[string]string{"stand": "unit 7"}
	out := CloneMetadata(in)
	out["stand"] = "changed"
	if in["stand"] != "unit 7" {
		t.Fatalf("clone shares storage")
	}
}
