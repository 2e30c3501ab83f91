package proc

import "strings"

// Quote renders s as a single argument for a command line interpreted on
// goos. Windows follows the CommandLineToArgvW rules, everything else uses
// POSIX single quotes.
func Quote(goos, s string) string {
	if goos == "windows" {
		return QuoteWindows(s)
	}
	return QuotePOSIX(s)
}

// Join quotes every element of args for goos and joins them with spaces.
func Join(goos string, args []string) string {
	if goos == "windows" {
		return JoinWindows(args)
	}
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = QuotePOSIX(a)
	}
	return strings.Join(quoted, " ")
}

// QuotePOSIX wraps s in single quotes unless it only contains characters a
// POSIX shell never interprets.
func QuotePOSIX(s string) string {
	if s == "" {
		return "''"
	}
	if isShellSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func isShellSafe(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("-_./:=@%+,", c) >= 0:
		default:
			return false
		}
	}
	return true
}

// QuotePowerShell wraps s in PowerShell single quotes, doubling any
// embedded single quote.
func QuotePowerShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteWindows escapes s following the MSDN CommandLineToArgvW rules:
//
//   - backslashes are doubled only when they precede a double quote;
//   - double quotes are escaped with a backslash;
//   - the argument is wrapped in double quotes when it contains a space or tab.
//
// An empty string becomes "".
func QuoteWindows(s string) string {
	if s == "" {
		return `""`
	}

	needsBackslash, hasSpace := scanArg(s)
	if !needsBackslash && !hasSpace {
		return s
	}
	if !needsBackslash {
		return `"` + s + `"`
	}

	var b []byte
	if hasSpace {
		b = append(b, '"')
	}
	slashes := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		default:
			slashes = 0
		case '\\':
			slashes++
		case '"':
			for ; slashes > 0; slashes-- {
				b = append(b, '\\')
			}
			b = append(b, '\\')
		}
		b = append(b, c)
	}
	if hasSpace {
		for ; slashes > 0; slashes-- {
			b = append(b, '\\')
		}
		b = append(b, '"')
	}
	return string(b)
}

// JoinWindows builds a CreateProcess command line from args.
func JoinWindows(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = QuoteWindows(a)
	}
	return strings.Join(quoted, " ")
}

func scanArg(s string) (needsBackslash, hasSpace bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			needsBackslash = true
		case ' ', '\t':
			hasSpace = true
		}
	}
	return needsBackslash, hasSpace
}
