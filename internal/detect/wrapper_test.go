package detect

import (
	"context"
	"testing"
	"time"

	"github.com/hay-kot/enso/internal/core/agent"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/pkg/executil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWrapperDetector(r executil.Runner) (*WrapperDetector, *time.Time) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w := NewWrapperDetector(zerolog.Nop(), testResolver("linux"), r, shell.Config{})
	w.now = func() time.Time { return now }
	return w, &now
}

func TestWrapperDetector_DetectAll(t *testing.T) {
	r := newFakeRunner()
	var opts executil.RunOptions
	r.on("hapi --version", func(o executil.RunOptions) (string, error) {
		opts = o
		return "hapi 0.4.2\n", nil
	})
	r.reply("happy --version", "happy version: 1.3.0\n", nil)

	w, _ := newTestWrapperDetector(r)
	results := w.DetectAll(context.Background(), Options{})

	require.Len(t, results, 2)
	assert.Equal(t, "hapi", results[0].ID)
	assert.True(t, results[0].Installed)
	assert.Equal(t, "0.4.2", results[0].Version)
	assert.Equal(t, agent.EnvHapi, results[0].Environment)

	assert.Equal(t, "happy", results[1].ID)
	assert.Equal(t, "1.3.0", results[1].Version)
	assert.Equal(t, agent.EnvHappy, results[1].Environment)

	assert.Equal(t, WrapperTimeout, opts.Timeout)
	assert.Contains(t, opts.Env, "PATH=/usr/local/bin:/usr/bin:/bin")
}

func TestWrapperDetector_LoginShell(t *testing.T) {
	var argv []string
	r := runnerFunc(func(_ context.Context, a []string, _ executil.RunOptions) (string, error) {
		argv = a
		return "0.1.0", nil
	})
	w, _ := newTestWrapperDetector(r)
	w.Detect(context.Background(), Wrappers[0], Options{})

	assert.Equal(t, []string{"/bin/sh", "-l", "-c", "hapi --version"}, argv)
}

func TestWrapperDetector_VersionFromFailedRun(t *testing.T) {
	r := newFakeRunner()
	r.reply("happy --version", "", &executil.ExitError{Code: 1, Output: "\x1b[2mhappy version: 2.0.1\x1b[0m\ndaemon not running"})

	w, _ := newTestWrapperDetector(r)
	got := w.Detect(context.Background(), Wrappers[1], Options{})

	assert.True(t, got.Installed)
	assert.Equal(t, "2.0.1", got.Version)
}

func TestWrapperDetector_Caching(t *testing.T) {
	r := newFakeRunner()
	w, now := newTestWrapperDetector(r)
	hapi := Wrappers[0]

	// failures are retried every call
	got := w.Detect(context.Background(), hapi, Options{})
	assert.False(t, got.Installed)
	w.Detect(context.Background(), hapi, Options{})
	assert.Equal(t, 2, r.called("hapi --version"))

	r.reply("hapi --version", "0.5.0", nil)
	got = w.Detect(context.Background(), hapi, Options{})
	assert.True(t, got.Installed)
	assert.Equal(t, 3, r.called("hapi --version"))

	// successes are reused within the TTL
	*now = now.Add(WrapperTTL - time.Second)
	w.Detect(context.Background(), hapi, Options{})
	assert.Equal(t, 3, r.called("hapi --version"))

	w.Detect(context.Background(), hapi, Options{ForceRefresh: true})
	assert.Equal(t, 4, r.called("hapi --version"))

	*now = now.Add(WrapperTTL)
	w.Detect(context.Background(), hapi, Options{})
	assert.Equal(t, 5, r.called("hapi --version"))
}

func TestWrapperDetector_Timeout(t *testing.T) {
	r := newFakeRunner()
	r.reply("hapi --version", "", errTimedOut)
	w, _ := newTestWrapperDetector(r)

	got := w.Detect(context.Background(), Wrappers[0], Options{})
	assert.False(t, got.Installed)
	assert.True(t, got.TimedOut)
}

type runnerFunc func(ctx context.Context, argv []string, opts executil.RunOptions) (string, error)

func (f runnerFunc) Run(ctx context.Context, argv []string, opts executil.RunOptions) (string, error) {
	return f(ctx, argv, opts)
}
