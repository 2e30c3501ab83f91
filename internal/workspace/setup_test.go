package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/hay-kot/enso/internal/core/config"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/pkg/executil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRunner_QuotesForShell(t *testing.T) {
	data := config.SetupTemplateData{Path: "/tmp/it's here", Name: "20260101-120000"}

	tests := []struct {
		name string
		sc   shell.Context
		want []string
	}{
		{
			name: "posix",
			sc:   shell.Context{Executable: "/bin/zsh", Args: []string{"-c"}},
			want: []string{"-c", `ls '/tmp/it'"'"'s here'`},
		},
		{
			name: "powershell",
			sc:   shell.Context{Executable: "pwsh.exe", Args: []string{"-NoLogo", "-Command"}},
			want: []string{"-NoLogo", "-Command", `ls '/tmp/it''s here'`},
		},
		{
			name: "cmd",
			sc:   shell.Context{Executable: "cmd.exe", Args: []string{"/d", "/s", "/c"}},
			want: []string{"/d", "/s", "/c", `ls "/tmp/it's here"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &executil.RecordingExecutor{}
			r := NewSetupRunner(zerolog.Nop(), rec, tt.sc, nil, nil)

			require.NoError(t, r.Run(context.Background(), []string{"ls {{ .Path | q }}"}, data))

			cmds := rec.Recorded()
			require.Len(t, cmds, 1)
			assert.Equal(t, tt.sc.Executable, cmds[0].Cmd)
			assert.Equal(t, data.Path, cmds[0].Dir)
			assert.Equal(t, tt.want, cmds[0].Args)
		})
	}
}

func TestSetupRunner_StopsAtFirstFailure(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Errors: map[string]error{"/bin/sh -c false": errors.New("exit status 1")},
	}
	r := NewSetupRunner(zerolog.Nop(), rec, shell.Context{Executable: "/bin/sh", Args: []string{"-c"}}, nil, nil)

	err := r.Run(context.Background(), []string{"true", "false", "never"}, config.SetupTemplateData{Path: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"false"`)
	assert.Len(t, rec.Recorded(), 2)
}

func TestSetupRunner_RenderError(t *testing.T) {
	rec := &executil.RecordingExecutor{}
	r := NewSetupRunner(zerolog.Nop(), rec, shell.Context{Executable: "/bin/sh", Args: []string{"-c"}}, nil, nil)

	err := r.Run(context.Background(), []string{"echo {{ .Branch }}"}, config.SetupTemplateData{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render setup command 0")
	assert.Empty(t, rec.Recorded())
}
