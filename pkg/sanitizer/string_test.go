package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"only spaces", "    ", ""},
		{"leading and trailing spaces", "  Lisbon trip  ", "Lisbon trip"},
		{"internal whitespace collapsed", "Road   trip \t to  Porto", "Road trip to Porto"},
		{"newlines collapsed", "Hiking\nthe\nAlps", "Hiking the Alps"},
		{"already normalized", "Weekend in Rome", "Weekend in Rome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestTrimAndNormalize_Idempotent(t *testing.T) {
	input := "  Surf   camp  "
	once := TrimAndNormalize(input)
	twice := TrimAndNormalize(once)

	if once != twice {
		t.Errorf("normalization is not idempotent: %q != %q", once, twice)
	}
}

func TestSanitizeSlice(t *testing.T) {
	got := SanitizeSlice([]string{" user-1 ", "user-2", "user-1", "", "   "}, TrimAndNormalize)

	if len(got) != 2 {
		t.Fatalf("expected 2 values, got %d: %v", len(got), got)
	}
	if got[0] != "user-1" || got[1] != "user-2" {
		t.Errorf("expected [user-1 user-2], got %v", got)
	}
}
