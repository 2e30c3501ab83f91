package detect

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DebugEnv turns on debug records and live mirroring of detection
// diagnostics when set to "1" or "true".
const DebugEnv = "ENSO_DEBUG_CLI_DETECT"

// LogFileName is the diagnostic log file inside the logs directory.
const LogFileName = "cli-detect.log"

// DebugEnabled reports whether the DebugEnv flag is set in getenv.
func DebugEnabled(getenv func(string) string) bool {
	v := strings.TrimSpace(getenv(DebugEnv))
	return v == "1" || strings.EqualFold(v, "true")
}

// Level is the severity of a diagnostic record.
type Level string

const (
	LevelDebug Level = "debug"
	LevelWarn  Level = "warn"
)

// Phase is the detection step a record belongs to.
type Phase string

const (
	PhaseVersion Phase = "version"
	PhaseProbe   Phase = "probe"
)

// Details is the structured payload of a diagnostic record.
type Details struct {
	AgentID       string   `json:"agent_id"`
	Command       string   `json:"command"`
	Phase         Phase    `json:"phase"`
	TimeoutMS     int64    `json:"timeout_ms"`
	Error         string   `json:"error,omitempty"`
	OutputPreview string   `json:"output_preview,omitempty"`
	Shell         string   `json:"shell"`
	ShellArgs     []string `json:"shell_args"`
	PathPreview   []string `json:"path_preview"`
	Packaged      bool     `json:"packaged"`
}

// Record is one diagnostic log entry as mirrored to subscribers.
type Record struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Details Details   `json:"details"`
}

// DiagnosticLog writes detection failures as JSON lines to a file that is
// created on the first record. Warn records are always written; debug
// records, and mirroring to subscribers, only when debug is on. A nil
// *DiagnosticLog discards everything.
type DiagnosticLog struct {
	path  string
	debug bool
	log   zerolog.Logger
	now   func() time.Time

	mu     sync.Mutex
	file   io.WriteCloser
	out    zerolog.Logger
	failed bool
	subs   map[int]chan Record
	nextID int
	closed bool
}

// NewDiagnosticLog returns a log writing to path. Failures to open or write
// the file are reported once to log.
func NewDiagnosticLog(path string, debug bool, log zerolog.Logger) *DiagnosticLog {
	return &DiagnosticLog{
		path:  path,
		debug: debug,
		log:   log.With().Str("component", "cli-detect-log").Logger(),
		now:   time.Now,
		subs:  make(map[int]chan Record),
	}
}

// Path returns the log file location.
func (l *DiagnosticLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Mirroring reports whether records are mirrored to subscribers.
func (l *DiagnosticLog) Mirroring() bool {
	return l != nil && l.debug
}

// Debug records a debug message. It is dropped unless debug is on.
func (l *DiagnosticLog) Debug(msg string, d Details) {
	l.write(LevelDebug, msg, d)
}

// Warn records a warning.
func (l *DiagnosticLog) Warn(msg string, d Details) {
	l.write(LevelWarn, msg, d)
}

// Subscribe mirrors every record written from now on to the returned
// channel while debug is on. Records are dropped when the channel buffer is
// full. Call the returned function to unsubscribe; it closes the channel.
func (l *DiagnosticLog) Subscribe(buffer int) (<-chan Record, func()) {
	ch := make(chan Record, buffer)
	if l == nil {
		close(ch)
		return ch, func() {}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(ch)
		return ch, func() {}
	}

	id := l.nextID
	l.nextID++
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if sub, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(sub)
			}
		})
	}
}

// Close closes the file and every subscriber channel.
func (l *DiagnosticLog) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *DiagnosticLog) write(level Level, msg string, d Details) {
	if l == nil || (level == LevelDebug && !l.debug) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	rec := Record{Time: l.now(), Level: level, Message: msg, Details: d}

	if l.ensureFile() {
		zl := zerolog.WarnLevel
		if level == LevelDebug {
			zl = zerolog.DebugLevel
		}
		l.out.WithLevel(zl).
			Time(zerolog.TimestampFieldName, rec.Time).
			Interface("details", d).
			Msg(msg)
	}

	if !l.debug {
		return
	}
	for _, ch := range l.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

// ensureFile opens the file on first use. Callers hold l.mu.
func (l *DiagnosticLog) ensureFile() bool {
	if l.file != nil {
		return true
	}
	if l.failed {
		return false
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		l.fail(fmt.Errorf("create log dir: %w", err))
		return false
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.fail(fmt.Errorf("open log file: %w", err))
		return false
	}

	l.file = f
	l.out = zerolog.New(f).Level(zerolog.DebugLevel)
	return true
}

func (l *DiagnosticLog) fail(err error) {
	l.failed = true
	l.log.Warn().Err(err).Str("path", l.path).Msg("detection diagnostics will not be written to disk")
}
