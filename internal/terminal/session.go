package terminal

import (
	"sync"
	"time"
)

const readBufferSize = 32 * 1024

type session struct {
	id         string
	cwd        string
	executable string
	args       []string
	proc       Process
	createdAt  time.Time

	writeMu sync.Mutex

	mu        sync.Mutex
	cols      uint16
	rows      uint16
	state     State
	observers map[int]Observer
	nextObs   int

	readDone  chan struct{}
	reaped    chan struct{} // closed as soon as Wait returns
	closeOnce sync.Once
}

func (s *session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:         s.id,
		Cwd:        s.cwd,
		Executable: s.executable,
		Args:       append([]string(nil), s.args...),
		PID:        s.proc.PID(),
		Cols:       s.cols,
		Rows:       s.rows,
		State:      s.state,
		CreatedAt:  s.createdAt,
	}
}

func (s *session) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

func (s *session) subscribe(o Observer) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// snapshot returns the observers in subscription order.
func (s *session) snapshot() []Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Observer, 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if o, ok := s.observers[i]; ok {
			out = append(out, o)
		}
	}
	return out
}

func (s *session) closePTY() {
	s.closeOnce.Do(func() { _ = s.proc.Close() })
}

// readLoop is the only reader of the pseudo terminal, which keeps output
// delivery in arrival order.
func (s *session) readLoop() {
	defer close(s.readDone)

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.proc.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			for _, o := range s.snapshot() {
				o.OnData(s.id, data)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *session) isReaped() bool {
	select {
	case <-s.reaped:
		return true
	default:
		return false
	}
}
