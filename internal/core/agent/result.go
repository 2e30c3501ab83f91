package agent

// Environment is the execution context that confirmed an agent.
type Environment string

const (
	EnvNative Environment = "native"
	EnvWSL    Environment = "wsl"
	EnvHapi   Environment = "hapi"
	EnvHappy  Environment = "happy"
)

// Probe names the detection phase that confirmed an installed agent.
type Probe string

const (
	// ProbeVersion means the agent ran and answered its version flag.
	ProbeVersion Probe = "version"
	// ProbePresence means the executable was found but never ran
	// successfully, so the install is unverified.
	ProbePresence Probe = "presence"
)

// Result is the outcome of detecting one agent. Values are built through
// Installed and NotInstalled and are not modified afterwards.
type Result struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Command     string      `json:"command"`
	Installed   bool        `json:"installed"`
	Version     string      `json:"version,omitempty"`
	IsBuiltin   bool        `json:"is_builtin"`
	Environment Environment `json:"environment,omitempty"`
	TimedOut    bool        `json:"timed_out,omitempty"`
	Probe       Probe       `json:"probe,omitempty"`
}

// Installed builds the result for an agent confirmed by probe. version may
// be empty when the output did not match the version pattern.
func Installed(d Descriptor, env Environment, probe Probe, version string) Result {
	return Result{
		ID:          d.ID,
		DisplayName: d.DisplayName,
		Command:     d.Command,
		Installed:   true,
		Version:     version,
		IsBuiltin:   d.IsBuiltin,
		Environment: env,
		Probe:       probe,
	}
}

// NotInstalled builds the result for an agent that could not be confirmed.
// timedOut records that the version probe hit its timeout.
func NotInstalled(d Descriptor, timedOut bool) Result {
	return Result{
		ID:          d.ID,
		DisplayName: d.DisplayName,
		Command:     d.Command,
		IsBuiltin:   d.IsBuiltin,
		TimedOut:    timedOut,
	}
}

// Unknown is the result for an id that is neither builtin nor supplied as a
// custom agent.
func Unknown(id string) Result {
	return Result{ID: id, DisplayName: id, Command: id}
}
