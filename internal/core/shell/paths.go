package shell

import (
	"sort"
	"strconv"
	"strings"
)

// toolDir is a directory package and version managers install binaries
// into. Glob entries are expanded and ordered newest version first.
type toolDir struct {
	env  string // base directory from an environment variable, empty for $HOME
	rel  []string
	glob bool
}

var posixToolDirs = []toolDir{
	{rel: []string{".local", "bin"}},
	{rel: []string{".npm-global", "bin"}},
	{rel: []string{".bun", "bin"}},
	{rel: []string{".cargo", "bin"}},
	{rel: []string{".volta", "bin"}},
	{rel: []string{".deno", "bin"}},
	{rel: []string{".asdf", "shims"}},
	{rel: []string{".local", "share", "mise", "shims"}},
	{rel: []string{".nix-profile", "bin"}},
	{rel: []string{".nvm", "versions", "node", "*", "bin"}, glob: true},
	{rel: []string{".fnm", "aliases", "default", "bin"}},
	{rel: []string{".local", "share", "pnpm"}},
}

var posixSystemDirs = []string{
	"/opt/homebrew/bin",
	"/home/linuxbrew/.linuxbrew/bin",
	"/usr/local/bin",
}

var windowsToolDirs = []toolDir{
	{env: "APPDATA", rel: []string{"npm"}},
	{env: "LOCALAPPDATA", rel: []string{"pnpm"}},
	{env: "USERPROFILE", rel: []string{".bun", "bin"}},
	{env: "USERPROFILE", rel: []string{".cargo", "bin"}},
	{env: "USERPROFILE", rel: []string{"scoop", "shims"}},
	{env: "VOLTA_HOME", rel: []string{"bin"}},
	{env: "NVM_SYMLINK"},
}

// EnhancedPath returns the inherited PATH followed by every tool manager
// directory that exists on disk. Inherited order is preserved and duplicates
// are removed, case-insensitively on Windows.
func (r *Resolver) EnhancedPath() string {
	env := r.env()
	entries := splitList(r.goos, lookupEnv(env, "PATH"))
	entries = append(entries, r.toolDirs(env)...)
	return strings.Join(dedupe(r.goos, entries), listSep(r.goos))
}

func (r *Resolver) toolDirs(env map[string]string) []string {
	var dirs []string

	if r.goos == "windows" {
		for _, d := range windowsToolDirs {
			base := lookupEnv(env, d.env)
			if base == "" {
				continue
			}
			p := join(r.goos, append([]string{base}, d.rel...)...)
			if r.exists(p) {
				dirs = append(dirs, p)
			}
		}
		return dirs
	}

	if r.home != "" {
		for _, d := range posixToolDirs {
			p := join(r.goos, append([]string{r.home}, d.rel...)...)
			if d.glob {
				dirs = append(dirs, newestFirst(r.glob(p))...)
				continue
			}
			if r.exists(p) {
				dirs = append(dirs, p)
			}
		}
	}
	for _, p := range posixSystemDirs {
		if r.exists(p) {
			dirs = append(dirs, p)
		}
	}
	return dirs
}

func dedupe(goos string, entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e == "" {
			continue
		}
		key := e
		if goos == "windows" {
			key = strings.ToLower(strings.TrimRight(e, `\/`))
		} else if len(key) > 1 {
			key = strings.TrimRight(key, "/")
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// newestFirst orders version directories (".../v20.11.1/bin") by their
// numeric version, highest first.
func newestFirst(paths []string) []string {
	sorted := append([]string(nil), paths...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareVersions(versionOf(sorted[i]), versionOf(sorted[j])) > 0
	})
	return sorted
}

func versionOf(p string) []int {
	var nums []int
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		seg = strings.TrimPrefix(seg, "v")
		parts := strings.Split(seg, ".")
		if len(parts) < 2 {
			continue
		}
		nums = nums[:0]
		ok := true
		for _, part := range parts {
			n, err := strconv.Atoi(part)
			if err != nil {
				ok = false
				break
			}
			nums = append(nums, n)
		}
		if ok {
			return nums
		}
	}
	return nil
}

func compareVersions(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x > y {
				return 1
			}
			return -1
		}
	}
	return 0
}
