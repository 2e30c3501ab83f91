package workspace

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSeeder(buf *bytes.Buffer) *Seeder {
	return NewSeeder(zerolog.New(buf), buf)
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), fs.ModePerm))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	require.NoError(t, filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	}))
	return n
}

func TestSeeder_Seed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		patterns []string
		files    map[string]string
		want     map[string]string
	}{
		{
			name:     "no patterns",
			patterns: nil,
			files:    map[string]string{".env": "A=1"},
			want:     map[string]string{},
		},
		{
			name:     "literal file",
			patterns: []string{".env"},
			files:    map[string]string{".env": "A=1", "main.go": "package main"},
			want:     map[string]string{".env": "A=1"},
		},
		{
			name:     "wildcard",
			patterns: []string{"*.txt"},
			files:    map[string]string{"a.txt": "a", "b.txt": "b", "c.json": "{}"},
			want:     map[string]string{"a.txt": "a", "b.txt": "b"},
		},
		{
			name:     "doublestar",
			patterns: []string{"configs/**/*.yaml"},
			files: map[string]string{
				"configs/dev/app.yaml": "dev",
				"configs/prod/db.yaml": "db",
				"configs/readme.txt":   "readme",
				"other/config.yaml":    "other",
			},
			want: map[string]string{
				"configs/dev/app.yaml": "dev",
				"configs/prod/db.yaml": "db",
			},
		},
		{
			name:     "missing pattern is skipped",
			patterns: []string{"nope.txt", "yes.txt"},
			files:    map[string]string{"yes.txt": "y"},
			want:     map[string]string{"yes.txt": "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, dest := t.TempDir(), t.TempDir()
			writeTree(t, src, tt.files)

			var buf bytes.Buffer
			require.NoError(t, newTestSeeder(&buf).Seed(context.Background(), tt.patterns, src, dest))

			for rel, content := range tt.want {
				got, err := os.ReadFile(filepath.Join(dest, rel))
				require.NoError(t, err, rel)
				assert.Equal(t, content, string(got))
			}
			assert.Equal(t, len(tt.want), countFiles(t, dest))
		})
	}
}

func TestSeeder_PreservesModeAndOverwrites(t *testing.T) {
	t.Parallel()

	src, dest := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "run.sh"), []byte("#!/bin/sh"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "run.sh"), []byte("old"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, newTestSeeder(&buf).Seed(context.Background(), []string{"run.sh"}, src, dest))

	got, err := os.ReadFile(filepath.Join(dest, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh", string(got))
}

func TestSeeder_RecreatesSymlinks(t *testing.T) {
	t.Parallel()

	src, dest := t.TempDir(), t.TempDir()
	require.NoError(t, os.Symlink("target.txt", filepath.Join(src, "link")))
	require.NoError(t, os.Symlink("old", filepath.Join(dest, "link")))

	var buf bytes.Buffer
	require.NoError(t, newTestSeeder(&buf).Seed(context.Background(), []string{"link"}, src, dest))

	target, err := os.Readlink(filepath.Join(dest, "link"))
	require.NoError(t, err)
	assert.Equal(t, "target.txt", target)
}

func TestSeeder_RejectsEscapes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret"), []byte("x"), 0o644))

	var buf bytes.Buffer
	err := newTestSeeder(&buf).Seed(context.Background(), []string{"../secret"}, src, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestSeeder_Cancelled(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := newTestSeeder(&buf).Seed(ctx, []string{"a.txt"}, src, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeeder_SourceMustBeDirectory(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	var buf bytes.Buffer
	assert.Error(t, newTestSeeder(&buf).Seed(context.Background(), []string{"x"}, file, t.TempDir()))
}

func TestEscapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"file.txt", false},
		{".hidden/file", false},
		{"...", false},
		{"../escape", true},
		{"dir/../../escape", true},
		{"/absolute", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapes(tt.path), tt.path)
	}
}
