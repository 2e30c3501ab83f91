package detect

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExtractExecutable returns the executable token of a command line. A
// leading quoted token may contain spaces. An empty or unterminated quote
// is not special: the line is split at the first whitespace like any other.
func ExtractExecutable(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}

	if q := command[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(command[1:], q); end > 0 {
			return command[1 : end+1]
		}
	}

	if i := strings.IndexFunc(command, unicode.IsSpace); i >= 0 {
		return command[:i]
	}
	return command
}

// IsPathLike reports whether exe names a filesystem location rather than a
// name to look up on PATH.
func IsPathLike(exe string) bool {
	if strings.ContainsAny(exe, `/\`) {
		return true
	}
	if len(exe) >= 2 && exe[1] == ':' && isASCIILetter(exe[0]) {
		return true
	}
	return strings.HasPrefix(exe, ".")
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// outputPreview returns the first non-empty line of s, cut to at most 200
// bytes on a rune boundary.
func outputPreview(s string) string {
	const limit = 200
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) <= limit {
			return line
		}
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		return line[:cut] + "..."
	}
	return ""
}
