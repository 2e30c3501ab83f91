package executil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ANSIPattern matches terminal control sequences introduced by either the
// 7-bit ESC or the 8-bit CSI (U+009B) character, plus OSC strings such as
// window title updates.
var ANSIPattern = regexp.MustCompile(
	`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)` +
		`|[\x{001b}\x{009b}][\[()#;?]*(?:[0-9]{1,4}(?:;[0-9]{0,4})*)?[0-9A-ORZcf-nqry=><]`,
)

// StripANSI removes control sequences and carriage returns from s. A raw
// 0x9B byte that is not part of a UTF-8 sequence is treated as an 8-bit CSI.
func StripANSI(s string) string {
	s = normalizeCSI(s)
	s = ANSIPattern.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\r", "")
}

func normalizeCSI(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 && s[i] == 0x9b {
			b.WriteString("\x1b[")
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}
