package commentary

import (
	"strings"
	"unicode"
)

// DefaultMaxChars caps text handed to speech synthesis.
const DefaultMaxChars = 500

// Sanitize makes text safe for speech synthesis: non-ASCII and control code
// points are dropped, whitespace runs collapse to one space, the result is
// trimmed and cut to at most max bytes. A max <= 0 selects DefaultMaxChars.
// Sanitize(Sanitize(s, n), n) == Sanitize(s, n).
func Sanitize(text string, max int) string {
	if max <= 0 {
		max = DefaultMaxChars
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r > unicode.MaxASCII:
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	if len(out) > max {
		out = strings.TrimRight(out[:max], " ")
	}
	return out
}
