package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/hay-kot/enso/internal/core/workspace"
)

// workspaceName matches folder names created for temporary workspaces.
var workspaceName = regexp.MustCompile(`^\d{8}-\d{6}(-[a-z0-9]+)?$`)

// WorkspaceCheck compares the temporary workspace directory with the
// recorded workspaces: directories without a record are orphans, records
// without a directory are stale.
type WorkspaceCheck struct {
	store   workspace.Store
	baseDir string
	fix     bool
}

// NewWorkspaceCheck creates a new workspace consistency check.
// If fix is true, orphaned directories and stale records are deleted.
func NewWorkspaceCheck(store workspace.Store, baseDir string, fix bool) *WorkspaceCheck {
	return &WorkspaceCheck{store: store, baseDir: baseDir, fix: fix}
}

func (c *WorkspaceCheck) Name() string {
	return "Temporary Workspaces"
}

func (c *WorkspaceCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	items, err := c.store.List(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "List workspaces",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.Path] = true

		if _, err := os.Stat(it.Path); !os.IsNotExist(err) {
			continue
		}
		result.Items = append(result.Items, c.resolve(it.FolderName, "stale record (directory missing)", func() error {
			return c.store.Delete(ctx, it.Path)
		}))
	}

	entries, err := os.ReadDir(c.baseDir)
	if err != nil && !os.IsNotExist(err) {
		result.Items = append(result.Items, CheckItem{
			Label:  "Read " + c.baseDir,
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	for _, entry := range entries {
		if !entry.IsDir() || !workspaceName.MatchString(entry.Name()) {
			continue
		}
		dir := filepath.Join(c.baseDir, entry.Name())
		if known[dir] {
			continue
		}
		result.Items = append(result.Items, c.resolve(entry.Name(), "orphaned workspace (no record)", func() error {
			return os.RemoveAll(dir)
		}))
	}

	if len(result.Items) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "Consistent",
			Status: StatusPass,
			Detail: fmt.Sprintf("%d workspace(s) recorded", len(items)),
		})
	}

	return result
}

func (c *WorkspaceCheck) resolve(label, problem string, fix func() error) CheckItem {
	if !c.fix {
		return CheckItem{Label: label, Status: StatusWarn, Detail: problem, Fixable: true}
	}
	if err := fix(); err != nil {
		return CheckItem{Label: label, Status: StatusFail, Detail: fmt.Sprintf("failed to fix: %v", err)}
	}
	return CheckItem{Label: label, Status: StatusPass, Detail: "fixed " + problem}
}
