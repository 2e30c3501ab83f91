package doctor

import (
	"context"

	"github.com/hay-kot/enso/internal/core/agent"
	"github.com/hay-kot/enso/internal/detect"
)

// Detector detects agent CLIs.
type Detector interface {
	DetectAll(ctx context.Context, custom []agent.CustomAgent, opts detect.Options) []agent.Result
}

// AgentsCheck reports which agent CLIs are installed.
type AgentsCheck struct {
	detector Detector
	custom   []agent.CustomAgent
}

// NewAgentsCheck creates a new agent detection check.
func NewAgentsCheck(d Detector, custom []agent.CustomAgent) *AgentsCheck {
	return &AgentsCheck{detector: d, custom: custom}
}

func (c *AgentsCheck) Name() string {
	return "Agents"
}

func (c *AgentsCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	installed := 0
	for _, r := range c.detector.DetectAll(ctx, c.custom, detect.Options{ForceRefresh: true}) {
		item := CheckItem{Label: r.DisplayName}
		switch {
		case r.Installed:
			installed++
			item.Status = StatusPass
			item.Detail = r.Version
			if r.Probe == agent.ProbePresence {
				item.Detail = "found, version unknown"
			}
		case r.TimedOut:
			item.Status = StatusWarn
			item.Detail = "timed out; it may still be installed"
		default:
			item.Status = StatusWarn
			item.Detail = "not installed"
		}
		result.Items = append(result.Items, item)
	}

	if installed == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "No agents",
			Status: StatusFail,
			Detail: "no agent CLI was found on PATH",
		})
	}

	return result
}
