package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TruncateCaption cuts text to at most maxLen runes. The cut happens at the
// last word boundary inside the limit when one exists in the final third of
// the allowance; otherwise the text is cut exactly at the limit. Input is
// NFC-normalized first so the rune count is stable and the cut cannot split
// a combining sequence.
func TruncateCaption(text string, maxLen int) string {
	text = strings.TrimSpace(norm.NFC.String(text))
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	cut := maxLen
	lastSpace := -1
	for i := 0; i < cut; i++ {
		if unicode.IsSpace(runes[i]) {
			lastSpace = i
		}
	}
	// A word boundary too far back would discard most of the allowance.
	if lastSpace >= (maxLen*2)/3 {
		cut = lastSpace
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
}

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
