package engine

import "testing"

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		input string
		fold  bool
		want  string
	}{
		{"  hello   world  ", false, "hello world"},
		{"Hello\tWorld\n", false, "Hello World"},
		{"Hello World", true, "hello world"},
		{"USER\n\nLOVES\tPIZZA", true, "user loves pizza"},
		{"", true, ""},
		{"   \t\n  ", true, ""},
	}
	for _, tt := range tests {
		if got := NormalizeContent(tt.input, tt.fold); got != tt.want {
			t.Errorf("NormalizeContent(%q, %v) = %q, want %q", tt.input, tt.fold, got, tt.want)
		}
	}
}

func TestContentHashNormalized(t *testing.T) {
	a := ContentHash("User loves pizza", true)
	b := ContentHash("  user   LOVES pizza  ", true)
	if a != b {
		t.Errorf("normalized variants hash differently: %s vs %s", a, b)
	}

	c := ContentHash("User loves pasta", true)
	if a == c {
		t.Error("different content must not collide")
	}
}

func TestContentHashExact(t *testing.T) {
	a := ContentHash("User loves pizza", false)
	b := ContentHash("user loves pizza", false)
	if a == b {
		t.Error("case variants should differ without normalization")
	}

	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
