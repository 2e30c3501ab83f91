package terminal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/pkg/executil"
	"github.com/hay-kot/enso/pkg/proc"
	"github.com/rs/zerolog"
)

const (
	// DefaultGracePeriod is how long a destroyed session's process tree
	// gets to exit after the terminate signal before it is killed.
	DefaultGracePeriod = 3 * time.Second

	DefaultCols uint16 = 80
	DefaultRows uint16 = 24

	// exitDrain bounds how long output written just before exit is
	// awaited before the exit is reported.
	exitDrain = 250 * time.Millisecond
)

// CreateOptions describes a new session.
type CreateOptions struct {
	// ID is optional; a UUID is generated when empty.
	ID  string
	Cwd string
	// Shell selects an interactive shell. Ignored when Command is set.
	Shell shell.Config
	// Command runs an explicit argv instead of a shell.
	Command    []string
	Cols, Rows uint16
	// Env is merged over the resolved shell environment.
	Env map[string]string
}

// Config tunes a Manager.
type Config struct {
	GracePeriod time.Duration
	Cols, Rows  uint16
}

// Manager owns every terminal session and the processes behind them. It is
// safe for concurrent use.
type Manager struct {
	log      zerolog.Logger
	resolver *shell.Resolver
	cfg      Config

	spawn    Spawner
	killTree func(pid int, sig proc.Signal) error
	now      func() time.Time

	mu         sync.Mutex
	sessions   map[string]*session
	tombstones map[string]struct{}
	// pending counts running teardowns; idle is closed when it drops to zero.
	pending int
	idle    chan struct{}
}

// NewManager returns a Manager spawning real pseudo terminals.
func NewManager(log zerolog.Logger, resolver *shell.Resolver, cfg Config) *Manager {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.Cols == 0 {
		cfg.Cols = DefaultCols
	}
	if cfg.Rows == 0 {
		cfg.Rows = DefaultRows
	}

	return &Manager{
		log:        log.With().Str("component", "terminal").Logger(),
		resolver:   resolver,
		cfg:        cfg,
		spawn:      SpawnPTY,
		killTree:   proc.KillTree,
		now:        time.Now,
		sessions:   make(map[string]*session),
		tombstones: make(map[string]struct{}),
	}
}

// Create starts a session and returns its id. It fails with a
// *executil.SpawnError when the process cannot be launched.
func (m *Manager) Create(opts CreateOptions) (string, error) {
	cwd, err := canonical(opts.Cwd)
	if err != nil {
		return "", fmt.Errorf("create terminal: %w", err)
	}
	if fi, err := os.Stat(cwd); err != nil {
		return "", fmt.Errorf("create terminal: %w", err)
	} else if !fi.IsDir() {
		return "", fmt.Errorf("create terminal: %s is not a directory", cwd)
	}

	ctx := m.resolver.Interactive(opts.Shell)
	argv := append([]string{ctx.Executable}, ctx.Args...)
	if len(opts.Command) > 0 {
		argv = append([]string(nil), opts.Command...)
	}

	env := make(map[string]string, len(ctx.Env)+len(opts.Env)+2)
	for k, v := range ctx.Env {
		env[k] = v
	}
	if _, ok := env["TERM"]; !ok {
		env["TERM"] = "xterm-256color"
	}
	if _, ok := env["COLORTERM"]; !ok {
		env["COLORTERM"] = "truecolor"
	}
	for k, v := range opts.Env {
		env[k] = v
	}
	environ := shell.Context{Env: env}.Environ()

	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = m.cfg.Cols
	}
	if rows == 0 {
		rows = m.cfg.Rows
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, live := m.sessions[id]; live {
		return "", fmt.Errorf("create terminal %s: %w", id, ErrSessionExists)
	}
	if _, dead := m.tombstones[id]; dead {
		return "", fmt.Errorf("create terminal %s: %w", id, ErrSessionExists)
	}

	p, err := m.spawn(argv, cwd, environ, cols, rows)
	if err != nil {
		return "", &executil.SpawnError{Path: argv[0], Err: err}
	}

	s := &session{
		id:         id,
		cwd:        cwd,
		executable: argv[0],
		args:       argv[1:],
		proc:       p,
		createdAt:  m.now(),
		cols:       cols,
		rows:       rows,
		state:      StateRunning,
		observers:  make(map[int]Observer),
		readDone:   make(chan struct{}),
		reaped:     make(chan struct{}),
	}
	m.sessions[id] = s

	go s.readLoop()
	go m.waitLoop(s)

	m.log.Debug().Str("id", id).Str("cwd", cwd).Strs("argv", argv).Int("pid", p.PID()).Msg("terminal created")
	return id, nil
}

// Write sends data to the session's input.
func (m *Manager) Write(id string, data []byte) error {
	s, err := m.live(id)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.proc.Write(data); err != nil {
		return fmt.Errorf("write terminal %s: %w", id, err)
	}
	return nil
}

// Resize changes the window size of the session. Repeating the current
// size is a no-op.
func (m *Manager) Resize(id string, cols, rows uint16) error {
	if cols == 0 || rows == 0 {
		return fmt.Errorf("resize terminal %s: invalid size %dx%d", id, cols, rows)
	}

	s, err := m.live(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cols == cols && s.rows == rows {
		return nil
	}
	if err := s.proc.Resize(cols, rows); err != nil {
		return fmt.Errorf("resize terminal %s: %w", id, err)
	}
	s.cols, s.rows = cols, rows
	return nil
}

// Subscribe registers o for the session's output and exit. The returned
// function removes it again.
func (m *Manager) Subscribe(id string, o Observer) (func(), error) {
	s, err := m.live(id)
	if err != nil {
		return nil, err
	}
	return s.subscribe(o), nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (Info, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return Info{}, false
	}
	return s.info(), true
}

// List returns every live session, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]Info, len(sessions))
	for i, s := range sessions {
		infos[i] = s.info()
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Destroy makes the session unusable immediately and tears its process
// tree down in the background. Unknown, exited and already destroyed ids
// are ignored.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.tombstones[id] = struct{}{}
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateDestroyed
	s.mu.Unlock()

	m.log.Debug().Str("id", id).Msg("terminal destroyed")

	m.mu.Lock()
	m.pending++
	if m.pending == 1 {
		m.idle = make(chan struct{})
	}
	m.mu.Unlock()

	go func() {
		defer m.teardownDone()
		m.teardown(s)
	}()
}

// DestroyByWorkdir destroys every session whose cwd is dir or lies inside
// it and returns how many were destroyed.
func (m *Manager) DestroyByWorkdir(dir string) int {
	root, err := canonical(dir)
	if err != nil {
		return 0
	}

	m.mu.Lock()
	var ids []string
	for id, s := range m.sessions {
		if within(root, s.cwd) {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Destroy(id)
	}
	return len(ids)
}

// DestroyAll destroys every session and returns how many there were.
func (m *Manager) DestroyAll() int {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Destroy(id)
	}
	return len(ids)
}

// Wait blocks until no teardown is running or ctx is done. Teardowns
// started while waiting are waited for too.
func (m *Manager) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.pending == 0 {
			m.mu.Unlock()
			return nil
		}
		idle := m.idle
		m.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) teardownDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending--
	if m.pending == 0 {
		close(m.idle)
	}
}

func (m *Manager) live(id string) (*session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || !s.running() {
		return nil, fmt.Errorf("terminal %s: %w", id, ErrUnknownSession)
	}
	return s, nil
}

// teardown signals the tree, waits up to the grace period and kills what
// is left. No signal is sent once the process has been reaped.
func (m *Manager) teardown(s *session) {
	defer s.closePTY()

	if s.isReaped() {
		return
	}

	pid := s.proc.PID()
	log := m.log.With().Str("id", s.id).Int("pid", pid).Logger()

	if err := m.killTree(pid, proc.Terminate); err != nil {
		log.Debug().Err(err).Msg("terminate failed")
	}

	select {
	case <-s.reaped:
		return
	case <-time.After(m.cfg.GracePeriod):
	}

	if s.isReaped() {
		return
	}
	log.Debug().Msg("grace period elapsed, killing process tree")
	if err := m.killTree(pid, proc.Kill); err != nil {
		log.Warn().Err(err).Msg("kill failed")
	}

	select {
	case <-s.reaped:
	case <-time.After(m.cfg.GracePeriod):
		log.Warn().Msg("process did not exit after kill")
	}
}

// waitLoop reaps the process and reports the exit to observers.
func (m *Manager) waitLoop(s *session) {
	code, err := s.proc.Wait()
	close(s.reaped)

	select {
	case <-s.readDone:
	case <-time.After(exitDrain):
	}
	s.closePTY()
	select {
	case <-s.readDone:
	case <-time.After(exitDrain):
		m.log.Debug().Str("id", s.id).Msg("reader still blocked after close")
	}

	var exitCode *int
	if err == nil {
		exitCode = &code
	} else {
		m.log.Debug().Err(err).Str("id", s.id).Msg("wait failed")
	}

	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateExited
	}
	s.mu.Unlock()

	m.mu.Lock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
		m.tombstones[s.id] = struct{}{}
	}
	m.mu.Unlock()

	for _, o := range s.snapshot() {
		o.OnExit(s.id, exitCode)
	}
}

func canonical(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return filepath.Clean(abs), nil
}

func within(root, p string) bool {
	if root == p {
		return true
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
