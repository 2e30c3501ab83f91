// Package agent defines the agent CLIs enso knows how to detect and the
// shape of a detection result.
package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultVersionFlag is passed to agents that do not configure one.
const DefaultVersionFlag = "--version"

// DefaultVersionPattern extracts a semantic version from probe output.
var DefaultVersionPattern = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// CustomPrefix namespaces custom agent ids away from builtin ids.
const CustomPrefix = "custom:"

// Descriptor identifies one CLI to detect. Builtin and custom agents are
// both resolved to a Descriptor before detection starts.
type Descriptor struct {
	ID             string
	DisplayName    string
	Command        string
	VersionFlag    string
	VersionPattern *regexp.Regexp
	IsBuiltin      bool
}

// VersionCommand is the command line of the version probe.
func (d Descriptor) VersionCommand() string {
	flag := d.VersionFlag
	if flag == "" {
		flag = DefaultVersionFlag
	}
	return d.Command + " " + flag
}

// ParseVersion extracts the version from probe output. The first capture
// group wins when the pattern has one.
func (d Descriptor) ParseVersion(output string) (string, bool) {
	re := d.VersionPattern
	if re == nil {
		re = DefaultVersionPattern
	}
	m := re.FindStringSubmatch(output)
	switch {
	case m == nil:
		return "", false
	case len(m) > 1 && m[1] != "":
		return m[1], true
	default:
		return strings.TrimSpace(m[0]), m[0] != ""
	}
}

// CustomAgent is a user defined agent as stored in configuration.
type CustomAgent struct {
	ID             string `yaml:"id"              json:"id"`
	Name           string `yaml:"name"            json:"name"`
	Command        string `yaml:"command"         json:"command"`
	VersionFlag    string `yaml:"version_flag"    json:"version_flag,omitempty"`
	VersionPattern string `yaml:"version_pattern" json:"version_pattern,omitempty"`
}

// CustomID returns the namespaced id of a custom agent. Ids that already
// carry the prefix are returned unchanged.
func CustomID(id string) string {
	if strings.HasPrefix(id, CustomPrefix) {
		return id
	}
	return CustomPrefix + id
}

// Source is where a Descriptor comes from: a BuiltinSource or a
// CustomSource.
type Source interface {
	Descriptor() (Descriptor, error)
	sealed()
}

// BuiltinSource is one of the agents shipped with enso. CommandOverride
// replaces the default command, e.g. with an absolute install path.
type BuiltinSource struct {
	Builtin         Descriptor
	CommandOverride string
}

func (BuiltinSource) sealed() {}

// Descriptor implements Source.
func (s BuiltinSource) Descriptor() (Descriptor, error) {
	d := s.Builtin
	d.IsBuiltin = true
	if c := strings.TrimSpace(s.CommandOverride); c != "" {
		d.Command = c
	}
	return d, nil
}

// CustomSource is a user defined agent.
type CustomSource struct {
	Agent CustomAgent
}

func (CustomSource) sealed() {}

// Descriptor implements Source. The id is namespaced with CustomPrefix.
func (s CustomSource) Descriptor() (Descriptor, error) {
	a := s.Agent
	if strings.TrimSpace(a.ID) == "" {
		return Descriptor{}, fmt.Errorf("custom agent: id is required")
	}
	if strings.TrimSpace(a.Command) == "" {
		return Descriptor{}, fmt.Errorf("custom agent %s: command is required", a.ID)
	}

	d := Descriptor{
		ID:          CustomID(a.ID),
		DisplayName: a.Name,
		Command:     strings.TrimSpace(a.Command),
		VersionFlag: a.VersionFlag,
	}
	if d.DisplayName == "" {
		d.DisplayName = a.ID
	}
	if a.VersionPattern != "" {
		re, err := regexp.Compile(a.VersionPattern)
		if err != nil {
			return Descriptor{}, fmt.Errorf("custom agent %s: version pattern: %w", a.ID, err)
		}
		d.VersionPattern = re
	}
	return d, nil
}
