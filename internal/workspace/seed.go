package workspace

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/enso/internal/styles"
	"github.com/rs/zerolog"
)

// Seeder copies files matching glob patterns from a source directory into
// a new workspace, for example an .env file from the project being tried
// out. Symlinks are recreated rather than followed.
type Seeder struct {
	log    zerolog.Logger
	stdout io.Writer
}

// NewSeeder creates a Seeder printing progress to stdout.
func NewSeeder(log zerolog.Logger, stdout io.Writer) *Seeder {
	if stdout == nil {
		stdout = io.Discard
	}
	return &Seeder{log: log, stdout: stdout}
}

// Seed copies every file matching patterns from src into dest. A pattern
// matching nothing is reported and skipped.
func (s *Seeder) Seed(ctx context.Context, patterns []string, src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("seed source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("seed source is not a directory: %s", src)
	}

	for _, pattern := range patterns {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.seedPattern(ctx, src, dest, pattern); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedPattern(ctx context.Context, src, dest, pattern string) error {
	matches, err := matchFiles(src, pattern)
	if err != nil {
		return fmt.Errorf("glob %q: %w", pattern, err)
	}

	if len(matches) == 0 {
		s.log.Warn().Str("pattern", pattern).Str("source", src).Msg("seed pattern matched no files")
		_, _ = fmt.Fprintf(s.stdout, "warning: pattern %q matched no files in %s\n", pattern, src)
		return nil
	}

	s.printHeader(pattern, len(matches))

	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if escapes(rel) {
			return fmt.Errorf("path escapes source directory: %q", rel)
		}

		if err := copyEntry(filepath.Join(src, rel), filepath.Join(dest, rel)); err != nil {
			return fmt.Errorf("copy %q: %w", rel, err)
		}
		_, _ = fmt.Fprintf(s.stdout, "  %s\n", rel)
	}
	return nil
}

// matchFiles returns the paths below root matching pattern, relative to
// root. Literal patterns are checked with Lstat so dangling symlinks match.
func matchFiles(root, pattern string) ([]string, error) {
	full := filepath.Join(root, pattern)

	if !strings.ContainsAny(pattern, "*?[{") {
		if _, err := os.Lstat(full); err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		return []string{filepath.Clean(pattern)}, nil
	}

	found, err := doublestar.FilepathGlob(full, doublestar.WithNoFollow())
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0, len(found))
	for _, m := range found {
		rel, err := filepath.Rel(root, m)
		if err != nil {
			return nil, fmt.Errorf("relative path for %q: %w", m, err)
		}
		matches = append(matches, rel)
	}
	return matches, nil
}

func escapes(rel string) bool {
	clean := filepath.Clean(rel)
	return filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// copyEntry copies a regular file or recreates a symlink. Directories are
// skipped; only files are seeded.
func copyEntry(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), fs.ModePerm); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return fmt.Errorf("read symlink: %w", err)
		}
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove existing: %w", err)
		}
		return os.Symlink(target, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (s *Seeder) printHeader(pattern string, count int) {
	divider := styles.DividerStyle.Render(strings.Repeat("─", 50))
	header := styles.CommandHeaderStyle.Render("copy")
	label := styles.CommandStyle.Render(pattern)
	countLabel := styles.DividerStyle.Render(fmt.Sprintf("[%d files]", count))

	_, _ = fmt.Fprintln(s.stdout, divider)
	_, _ = fmt.Fprintf(s.stdout, "%s %s %s\n", header, label, countLabel)
	_, _ = fmt.Fprintln(s.stdout, divider)
}
