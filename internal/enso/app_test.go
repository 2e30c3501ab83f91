package enso

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/enso/internal/core/config"
	"github.com/hay-kot/enso/internal/terminal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Terminal.GracePeriod = 200 * time.Millisecond
	return New(&cfg, zerolog.Nop(), Options{})
}

func TestApp_Wiring(t *testing.T) {
	app := newTestApp(t)

	assert.NotNil(t, app.Resolver)
	assert.NotNil(t, app.Runner)
	assert.NotNil(t, app.Detector)
	assert.NotNil(t, app.Wrappers)
	assert.NotNil(t, app.Terminals)
	assert.NotNil(t, app.Git)
	assert.NotNil(t, app.Workspaces)
	assert.Equal(t, filepath.Join(app.Config.DataDir, "logs", "cli-detect.log"), app.Diagnostics.Path())
	assert.Same(t, app.Diagnostics, app.Detector.Diagnostics())

	require.NoError(t, app.Close(context.Background()))
}

func TestApp_CloseReleasesEverything(t *testing.T) {
	if _, err := os.Stat("/bin/cat"); err != nil {
		t.Skip("needs /bin/cat")
	}
	app := newTestApp(t)

	dir := t.TempDir()
	require.NoError(t, app.Git.RegisterAuthorized(dir))

	id, err := app.Terminals.Create(terminal.CreateOptions{Cwd: dir, Command: []string{"/bin/cat"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Close(ctx))

	_, ok := app.Terminals.Get(id)
	assert.False(t, ok)
	assert.Empty(t, app.Terminals.List())
	assert.Empty(t, app.Git.Authorized())
}
