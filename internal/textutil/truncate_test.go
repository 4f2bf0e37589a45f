package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateCaptionShortTextUntouched(t *testing.T) {
	got := TruncateCaption("sunset over the beach", 100)
	if got != "sunset over the beach" {
		t.Fatalf("short caption modified: %q", got)
	}
}

func TestTruncateCaptionPrefersWordBoundary(t *testing.T) {
	got := TruncateCaption("golden hour at the waterfront promenade", 25)
	if strings.HasSuffix(got, " ") {
		t.Fatalf("trailing space left: %q", got)
	}
	if utf8.RuneCountInString(got) > 25 {
		t.Fatalf("limit exceeded: %q (%d runes)", got, utf8.RuneCountInString(got))
	}
	// Must end on a complete word.
	words := strings.Fields("golden hour at the waterfront promenade")
	last := got[strings.LastIndex(got, " ")+1:]
	found := false
	for _, w := range words {
		if w == last {
			found = true
		}
	}
	if !found {
		t.Fatalf("cut mid-word: %q", got)
	}
}

func TestTruncateCaptionHardCutWithoutBoundary(t *testing.T) {
	got := TruncateCaption(strings.Repeat("a", 50), 10)
	if utf8.RuneCountInString(got) != 10 {
		t.Fatalf("expected hard cut at 10 runes, got %d", utf8.RuneCountInString(got))
	}
}

func TestTruncateCaptionZeroLimit(t *testing.T) {
	if got := TruncateCaption("anything", 0); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestTruncateCaptionCombiningSequence(t *testing.T) {
	// "e" + combining acute normalizes to a single rune under NFC, so the
	// count is stable no matter how the input was composed.
	text := "café " + strings.Repeat("x", 20)
	got := TruncateCaption(text, 4)
	if got != "café" {
		t.Fatalf("expected %q, got %q", "café", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice", "alice"},
		{"alice.b", "alice_b"},
		{"", "unknown"},
		{"__", "unknown"},
		{"user-42", "user-42"},
	}
	for _, tc := range tests {
		if got := SanitizeToken(tc.in); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
