package agent

var builtins = []Descriptor{
	{ID: "claude", DisplayName: "Claude", Command: "claude"},
	{ID: "codex", DisplayName: "Codex", Command: "codex"},
	{ID: "droid", DisplayName: "Droid", Command: "droid"},
	{ID: "gemini", DisplayName: "Gemini", Command: "gemini"},
	{ID: "auggie", DisplayName: "Auggie", Command: "auggie"},
	{ID: "cursor", DisplayName: "Cursor Agent", Command: "cursor-agent"},
	{ID: "opencode", DisplayName: "OpenCode", Command: "opencode"},
}

// Builtins returns the builtin agents in display order.
func Builtins() []Descriptor {
	out := make([]Descriptor, len(builtins))
	for i, d := range builtins {
		d.VersionFlag = DefaultVersionFlag
		d.VersionPattern = DefaultVersionPattern
		d.IsBuiltin = true
		out[i] = d
	}
	return out
}

// Builtin looks up a builtin agent by id.
func Builtin(id string) (Descriptor, bool) {
	for _, d := range Builtins() {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}
