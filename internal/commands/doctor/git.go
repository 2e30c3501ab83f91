package doctor

import (
	"context"

	"github.com/hay-kot/enso/internal/core/git"
)

// GitCheck verifies that the configured git binary runs.
type GitCheck struct {
	git     git.Git
	gitPath string
}

// NewGitCheck creates a new git availability check.
func NewGitCheck(g git.Git, gitPath string) *GitCheck {
	return &GitCheck{git: g, gitPath: gitPath}
}

func (c *GitCheck) Name() string {
	return "Git"
}

func (c *GitCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	v, err := c.git.Version(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.gitPath,
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  c.gitPath,
		Status: StatusPass,
		Detail: "version " + v,
	})
	return result
}
