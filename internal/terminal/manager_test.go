package terminal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/pkg/executil"
	"github.com/hay-kot/enso/pkg/proc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid int

	out      chan []byte
	closed   chan struct{}
	exited   chan struct{}
	code     int
	exitOnce sync.Once
	closeOne sync.Once

	mu      sync.Mutex
	written bytes.Buffer
	resizes [][2]uint16
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{
		pid:    pid,
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Read(b []byte) (int, error) {
	select {
	case data, ok := <-p.out:
		if !ok {
			return 0, io.EOF
		}
		return copy(b, data), nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *fakeProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakeProcess) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizes = append(p.resizes, [2]uint16{cols, rows})
	return nil
}

func (p *fakeProcess) Wait() (int, error) {
	<-p.exited
	return p.code, nil
}

func (p *fakeProcess) Close() error {
	p.closeOne.Do(func() { close(p.closed) })
	return nil
}

func (p *fakeProcess) exit(code int) {
	p.exitOnce.Do(func() {
		p.code = code
		close(p.exited)
	})
}

func (p *fakeProcess) resizeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resizes)
}

type signalCall struct {
	pid int
	sig proc.Signal
}

type harness struct {
	m *Manager

	mu       sync.Mutex
	procs    []*fakeProcess
	argvs    [][]string
	envs     [][]string
	signals  []signalCall
	obeyTerm bool
	spawnErr error
	nextPID  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	resolver := shell.NewResolver(
		shell.WithPlatform("linux"),
		shell.WithEnviron([]string{"PATH=/usr/bin:/bin", "TERM=dumb-from-parent"}),
		shell.WithExists(func(p string) bool { return p == "/bin/bash" }),
		shell.WithGlob(func(string) []string { return nil }),
		shell.WithHome(""),
	)

	h := &harness{obeyTerm: true, nextPID: 1000}
	h.m = NewManager(zerolog.Nop(), resolver, Config{GracePeriod: 50 * time.Millisecond})
	h.m.spawn = h.spawn
	h.m.killTree = h.kill
	return h
}

func (h *harness) spawn(argv []string, dir string, env []string, cols, rows uint16) (Process, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.spawnErr != nil {
		return nil, h.spawnErr
	}
	h.nextPID++
	p := newFakeProcess(h.nextPID)
	h.procs = append(h.procs, p)
	h.argvs = append(h.argvs, argv)
	h.envs = append(h.envs, env)
	return p, nil
}

func (h *harness) kill(pid int, sig proc.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, signalCall{pid: pid, sig: sig})
	obey := h.obeyTerm || sig == proc.Kill
	var target *fakeProcess
	for _, p := range h.procs {
		if p.pid == pid {
			target = p
		}
	}
	h.mu.Unlock()

	if obey && target != nil {
		target.exit(128 + 15)
	}
	return nil
}

func (h *harness) signalsFor(pid int) []proc.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []proc.Signal
	for _, c := range h.signals {
		if c.pid == pid {
			out = append(out, c.sig)
		}
	}
	return out
}

func (h *harness) process(i int) *fakeProcess {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.procs[i]
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.m.Wait(ctx))
}

func TestManager_Create(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	id, err := h.m.Create(CreateOptions{Cwd: dir, Env: map[string]string{"ENSO_SESSION": "1"}})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "generated ids are UUIDs")

	assert.Equal(t, []string{"/bin/bash"}, h.argvs[0])
	assert.Contains(t, h.envs[0], "ENSO_SESSION=1")
	assert.Contains(t, h.envs[0], "TERM=dumb-from-parent")
	assert.Contains(t, h.envs[0], "COLORTERM=truecolor")
	assert.Contains(t, h.envs[0], "PATH=/usr/bin:/bin")

	info, ok := h.m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateRunning, info.State)
	assert.Equal(t, DefaultCols, info.Cols)
	assert.Equal(t, DefaultRows, info.Rows)
	assert.Equal(t, h.process(0).pid, info.PID)

	_, err = h.m.Create(CreateOptions{ID: "abc", Cwd: dir, Shell: shell.Config{Kind: shell.KindLogin}, Cols: 120, Rows: 40})
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/bash", "-l"}, h.argvs[1])

	_, err = h.m.Create(CreateOptions{ID: "cmd", Cwd: dir, Command: []string{"claude", "--resume"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"claude", "--resume"}, h.argvs[2])

	infos := h.m.List()
	assert.Len(t, infos, 3)
}

func TestManager_CreateErrors(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := h.m.Create(CreateOptions{Cwd: filepath.Join(dir, "missing")})
	assert.Error(t, err)
	_, err = h.m.Create(CreateOptions{Cwd: file})
	assert.Error(t, err)
	_, err = h.m.Create(CreateOptions{})
	assert.Error(t, err)

	h.spawnErr = errors.New("exec: no such file")
	_, err = h.m.Create(CreateOptions{Cwd: dir, Command: []string{"nope"}})
	var spawnErr *executil.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "nope", spawnErr.Path)
	h.spawnErr = nil

	_, err = h.m.Create(CreateOptions{ID: "abc", Cwd: dir})
	require.NoError(t, err)
	_, err = h.m.Create(CreateOptions{ID: "abc", Cwd: dir})
	assert.ErrorIs(t, err, ErrSessionExists)

	h.m.Destroy("abc")
	_, err = h.m.Create(CreateOptions{ID: "abc", Cwd: dir})
	assert.ErrorIs(t, err, ErrSessionExists, "destroyed ids are never reused")
	h.wait(t)
}

func TestManager_WriteAndResize(t *testing.T) {
	h := newHarness(t)
	id, err := h.m.Create(CreateOptions{Cwd: t.TempDir()})
	require.NoError(t, err)
	p := h.process(0)

	require.NoError(t, h.m.Write(id, []byte("ls\r")))
	p.mu.Lock()
	assert.Equal(t, "ls\r", p.written.String())
	p.mu.Unlock()

	require.NoError(t, h.m.Resize(id, 100, 30))
	require.NoError(t, h.m.Resize(id, 100, 30))
	assert.Equal(t, 1, p.resizeCount(), "identical sizes resize once")
	require.NoError(t, h.m.Resize(id, 101, 30))
	assert.Equal(t, 2, p.resizeCount())

	info, _ := h.m.Get(id)
	assert.Equal(t, uint16(101), info.Cols)

	assert.Error(t, h.m.Resize(id, 0, 30))
	assert.ErrorIs(t, h.m.Write("nope", []byte("x")), ErrUnknownSession)
	assert.ErrorIs(t, h.m.Resize("nope", 1, 1), ErrUnknownSession)
	_, err = h.m.Subscribe("nope", ObserverFuncs{})
	assert.ErrorIs(t, err, ErrUnknownSession)

	h.m.Destroy(id)
	assert.ErrorIs(t, h.m.Write(id, []byte("x")), ErrUnknownSession)
	assert.ErrorIs(t, h.m.Resize(id, 80, 24), ErrUnknownSession)
	h.wait(t)
}

type recorder struct {
	mu    sync.Mutex
	data  bytes.Buffer
	exits []*int
	done  chan struct{}
}

func newRecorder() *recorder { return &recorder{done: make(chan struct{})} }

func (r *recorder) OnData(_ string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Write(data)
}

func (r *recorder) OnExit(_ string, code *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits = append(r.exits, code)
	close(r.done)
}

func (r *recorder) output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.String()
}

func TestManager_ObserversAndExit(t *testing.T) {
	h := newHarness(t)
	id, err := h.m.Create(CreateOptions{Cwd: t.TempDir()})
	require.NoError(t, err)
	p := h.process(0)

	a, b := newRecorder(), newRecorder()
	_, err = h.m.Subscribe(id, a)
	require.NoError(t, err)
	unsubscribe, err := h.m.Subscribe(id, b)
	require.NoError(t, err)

	for _, chunk := range []string{"one ", "two ", "three"} {
		p.out <- []byte(chunk)
	}
	require.Eventually(t, func() bool { return b.output() == "one two three" }, time.Second, 5*time.Millisecond)

	unsubscribe()
	p.out <- []byte(" four")
	require.Eventually(t, func() bool { return a.output() == "one two three four" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "one two three", b.output())

	p.exit(7)
	select {
	case <-a.done:
	case <-time.After(2 * time.Second):
		t.Fatal("exit not reported")
	}
	require.Len(t, a.exits, 1)
	require.NotNil(t, a.exits[0])
	assert.Equal(t, 7, *a.exits[0])

	_, ok := h.m.Get(id)
	assert.False(t, ok)
	assert.ErrorIs(t, h.m.Write(id, []byte("x")), ErrUnknownSession)

	// destroying an exited session sends nothing
	h.m.Destroy(id)
	h.wait(t)
	assert.Empty(t, h.signalsFor(p.pid))
}

func TestManager_DestroyGraceful(t *testing.T) {
	h := newHarness(t)
	id, err := h.m.Create(CreateOptions{ID: "abc", Cwd: t.TempDir()})
	require.NoError(t, err)
	p := h.process(0)

	rec := newRecorder()
	_, err = h.m.Subscribe(id, rec)
	require.NoError(t, err)

	h.m.Destroy("abc")
	h.m.Destroy("abc")
	h.wait(t)

	assert.Equal(t, []proc.Signal{proc.Terminate}, h.signalsFor(p.pid))
	<-rec.done
	select {
	case <-p.closed:
	default:
		t.Fatal("pty not closed")
	}
}

func TestManager_DestroyEscalatesToKill(t *testing.T) {
	h := newHarness(t)
	h.obeyTerm = false

	_, err := h.m.Create(CreateOptions{ID: "stubborn", Cwd: t.TempDir()})
	require.NoError(t, err)
	p := h.process(0)

	start := time.Now()
	h.m.Destroy("stubborn")
	h.wait(t)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, []proc.Signal{proc.Terminate, proc.Kill}, h.signalsFor(p.pid))
}

func TestManager_WaitCoversTeardownsStartedWhileWaiting(t *testing.T) {
	h := newHarness(t)
	h.obeyTerm = false

	require.NoError(t, h.m.Wait(context.Background()), "nothing pending")

	_, err := h.m.Create(CreateOptions{ID: "a", Cwd: t.TempDir()})
	require.NoError(t, err)
	_, err = h.m.Create(CreateOptions{ID: "b", Cwd: t.TempDir()})
	require.NoError(t, err)
	pb := h.process(1)

	h.m.Destroy("a")

	waited := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		waited <- h.m.Wait(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	h.m.Destroy("b")

	require.NoError(t, <-waited)
	assert.Equal(t, []proc.Signal{proc.Terminate, proc.Kill}, h.signalsFor(pb.pid))
}

func TestManager_WaitCanceled(t *testing.T) {
	h := newHarness(t)
	h.obeyTerm = false
	h.m.cfg.GracePeriod = time.Second

	_, err := h.m.Create(CreateOptions{ID: "slow", Cwd: t.TempDir()})
	require.NoError(t, err)
	h.m.Destroy("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, h.m.Wait(ctx), context.DeadlineExceeded)

	h.wait(t)
}

func TestManager_DestroyByWorkdir(t *testing.T) {
	h := newHarness(t)
	root := t.TempDir()
	sub := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	sibling := root + "-other"
	require.NoError(t, os.Mkdir(sibling, 0o755))
	t.Cleanup(func() { _ = os.RemoveAll(sibling) })

	for _, dir := range []string{root, sub, sibling} {
		_, err := h.m.Create(CreateOptions{Cwd: dir})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, h.m.DestroyByWorkdir(root+string(filepath.Separator)))
	infos := h.m.List()
	require.Len(t, infos, 1)
	assert.Equal(t, sibling, infos[0].Cwd)

	assert.Equal(t, 0, h.m.DestroyByWorkdir(""))
	assert.Equal(t, 1, h.m.DestroyAll())
	assert.Empty(t, h.m.List())
	h.wait(t)
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + filepath.Join("tmp", "ws")

	assert.True(t, within(root, root))
	assert.True(t, within(root, filepath.Join(root, "a", "b")))
	assert.False(t, within(root, root+"-2"))
	assert.False(t, within(root, sep+"tmp"))
	assert.True(t, within(root, filepath.Join(root, "..foo")))
}
