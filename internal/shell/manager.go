// Package shell implements the process session manager backing the shell
// worker. A session is a named, persistent handle to at most one live OS
// process; sessions survive process exit and are reused by subsequent
// exec calls.
//
// Every operation is non-blocking by default: output is pumped into the
// session buffer by a background reader, so View and the post-exec preview
// only snapshot what has already arrived. Wait is the single explicitly
// blocking operation.
//
// All operations return their outcome as text. The manager sits directly
// behind the tool boundary, so failures (bad working directory, writes to a
// dead process, unknown ids) are captured results for the reasoner to read,
// never errors that could abort the orchestration loop.
package shell

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options tune the manager. Zero values fall back to the defaults below.
type Options struct {
	// Grace is how long a terminate signal gets before force-kill.
	Grace time.Duration

	// Settle is the pause after writing to a process's stdin before the
	// output buffer is snapshotted.
	Settle time.Duration

	// PreviewLimit bounds the output preview returned by Exec.
	PreviewLimit int

	// DrainWindow is how long Exec waits for initial output before
	// returning its preview.
	DrainWindow time.Duration
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		Grace:        5 * time.Second,
		Settle:       500 * time.Millisecond,
		PreviewLimit: 1000,
		DrainWindow:  200 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Grace <= 0 {
		o.Grace = def.Grace
	}
	if o.Settle <= 0 {
		o.Settle = def.Settle
	}
	if o.PreviewLimit <= 0 {
		o.PreviewLimit = def.PreviewLimit
	}
	if o.DrainWindow <= 0 {
		o.DrainWindow = def.DrainWindow
	}
	return o
}

// Manager owns the session table. It is process-wide shared state: multiple
// concurrent runs hold the same manager, so the table lock is held only for
// lookups while per-session locks serialize operations on one id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	opts Options
	log  *zap.Logger
}

// NewManager creates a session manager. The logger may not be nil; pass
// zap.NewNop() when logging is unwanted.
func NewManager(opts Options, log *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts.withDefaults(),
		log:      log,
	}
}

// session returns the session for id, creating it on first reference.
func (m *Manager) session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = &Session{id: id}
		m.sessions[id] = s
		m.log.Debug("session created", zap.String("session", id))
	}
	return s
}

// lookup returns the session for id without creating it.
func (m *Manager) lookup(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Sessions returns the ids of all known sessions, for inspection.
func (m *Manager) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Exec launches command in the session's working directory. Any live
// process on the same id is terminated first (signal, grace period,
// force-kill), and the output buffer is reset. The command keeps running in
// the background; the returned text carries a bounded preview of whatever
// output arrived immediately.
func (m *Manager) Exec(id, dir, command string) string {
	s := m.session(id)
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if p := s.liveProcess(); p != nil {
		m.log.Info("replacing live process",
			zap.String("session", id), zap.Int("pid", p.pid()))
		p.terminate(m.opts.Grace)
	}
	s.resetBuffer()

	p, err := startProcess(dir, command, s)
	if err != nil {
		m.log.Warn("launch failed",
			zap.String("session", id), zap.String("command", command), zap.Error(err))
		return fmt.Sprintf("Error executing command: %v", err)
	}
	s.setProcess(p)
	m.log.Info("process started",
		zap.String("session", id), zap.Int("pid", p.pid()), zap.String("dir", dir))

	// Give fast commands a moment to produce output, then snapshot.
	select {
	case <-p.done:
	case <-time.After(m.opts.DrainWindow):
	}

	preview := s.snapshot()
	if len(preview) > m.opts.PreviewLimit {
		preview = preview[:m.opts.PreviewLimit]
	}
	return fmt.Sprintf("Command started in session %s. Initial output: %s", id, preview)
}

// View returns the full accumulated output buffer of the session.
func (m *Manager) View(id string) string {
	s := m.lookup(id)
	if s == nil {
		return fmt.Sprintf("Session %s not found", id)
	}
	return s.snapshot()
}

// Wait blocks until the session's process exits or the timeout elapses.
// seconds <= 0 waits indefinitely. A timeout leaves the process untouched.
// Wait intentionally does not take the session's operation lock: a blocked
// Wait must not prevent Kill on the same id.
func (m *Manager) Wait(id string, seconds int) string {
	s := m.lookup(id)
	if s == nil {
		return fmt.Sprintf("Session %s not found", id)
	}

	p := s.process()
	if p == nil {
		return fmt.Sprintf("No process running in session %s", id)
	}
	if code, exited := p.exitStatus(); exited {
		return fmt.Sprintf("Process in session %s already completed with return code %d", id, code)
	}

	if seconds > 0 {
		select {
		case <-p.done:
		case <-time.After(time.Duration(seconds) * time.Second):
			return fmt.Sprintf("Process in session %s still running after %d seconds", id, seconds)
		}
	} else {
		<-p.done
	}

	// done closing guarantees the pump drained the stream to EOF.
	code, _ := p.exitStatus()
	m.log.Info("process completed",
		zap.String("session", id), zap.Int("exit_code", code))
	return fmt.Sprintf("Process in session %s completed with return code %d", id, code)
}

// WriteInput writes text to the live process's stdin, appending a newline
// when pressEnter is set, then waits a short settle delay so the responding
// output lands in the buffer before the next View.
func (m *Manager) WriteInput(id, input string, pressEnter bool) string {
	s := m.lookup(id)
	if s == nil {
		return fmt.Sprintf("Session %s not found", id)
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	p := s.process()
	if p == nil {
		return fmt.Sprintf("No process running in session %s", id)
	}
	if code, exited := p.exitStatus(); exited {
		return fmt.Sprintf("Process in session %s already completed with return code %d", id, code)
	}

	if pressEnter {
		input += "\n"
	}
	if _, err := p.stdin.Write([]byte(input)); err != nil {
		m.log.Warn("stdin write failed", zap.String("session", id), zap.Error(err))
		return fmt.Sprintf("Error writing to process: %v", err)
	}

	time.Sleep(m.opts.Settle)
	return fmt.Sprintf("Input written to process in session %s", id)
}

// Kill terminates the session's process with the same two-phase policy used
// when Exec replaces a process. Killing an already-exited process reports
// completion instead of erroring.
func (m *Manager) Kill(id string) string {
	s := m.lookup(id)
	if s == nil {
		return fmt.Sprintf("Session %s not found", id)
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	p := s.process()
	if p == nil {
		return fmt.Sprintf("No process running in session %s", id)
	}
	if code, exited := p.exitStatus(); exited {
		return fmt.Sprintf("Process in session %s already completed with return code %d", id, code)
	}

	p.terminate(m.opts.Grace)
	m.log.Info("process terminated", zap.String("session", id))
	return fmt.Sprintf("Process in session %s terminated", id)
}

// Shutdown force-terminates every live process. Called on server exit.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.opMu.Lock()
		if p := s.liveProcess(); p != nil {
			p.terminate(time.Second)
		}
		s.opMu.Unlock()
	}
}
