package shell

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Session is a named handle to at most one live OS process plus the
// accumulated output of the most recent exec. Sessions are never deleted;
// they persist for the lifetime of the manager.
type Session struct {
	id string

	// opMu serializes Exec, WriteInput and Kill on this id so concurrent
	// runs cannot race on one process's handles. View and Wait only take
	// the field lock below.
	opMu sync.Mutex

	// mu guards buf and proc.
	mu   sync.Mutex
	buf  bytes.Buffer
	proc *process
}

func (s *Session) process() *process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc
}

func (s *Session) setProcess(p *process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = p
}

// liveProcess returns the current process only if it has not exited.
func (s *Session) liveProcess() *process {
	p := s.process()
	if p == nil {
		return nil
	}
	if _, exited := p.exitStatus(); exited {
		return nil
	}
	return p
}

func (s *Session) resetBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
}

func (s *Session) appendOutput(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(b)
}

// snapshot returns the accumulated output so far.
func (s *Session) snapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// process wraps one launched command. stdout and stderr are merged into a
// single pipe drained by a pump goroutine; done closes only after the
// process has exited and the pump has read the stream to EOF, so waiting on
// done guarantees a complete buffer.
type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}

	mu       sync.Mutex
	exited   bool
	exitCode int
}

// startProcess launches command under dir with merged output streaming into
// the session buffer.
func startProcess(dir, command string, s *Session) (*process, error) {
	cmd := exec.Command("bash", "-c", command)
	cmd.Dir = dir
	// Own process group, so terminate reaches the whole tree. A surviving
	// grandchild would otherwise hold the output pipe open and stall the
	// drain.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	r, w, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		stdin.Close()
		r.Close()
		w.Close()
		return nil, err
	}
	// The child holds its own copy of the write end.
	w.Close()

	p := &process{
		cmd:   cmd,
		stdin: stdin,
		done:  make(chan struct{}),
	}

	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		defer r.Close()
		chunk := make([]byte, 4096)
		for {
			n, err := r.Read(chunk)
			if n > 0 {
				s.appendOutput(chunk[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		err := cmd.Wait()
		<-pumped

		code := 0
		if err != nil {
			code = -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			}
		} else {
			code = cmd.ProcessState.ExitCode()
		}

		p.mu.Lock()
		p.exited = true
		p.exitCode = code
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// exitStatus returns the exit code and whether the process has exited.
func (p *process) exitStatus() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited
}

// terminate implements the two-phase shutdown shared by Exec's replace path
// and Kill: terminate signal, bounded grace period, force-kill. It returns
// once the process has fully exited and its output is drained.
func (p *process) terminate(grace time.Duration) {
	if _, exited := p.exitStatus(); exited {
		return
	}

	p.signalGroup(syscall.SIGTERM)
	select {
	case <-p.done:
		return
	case <-time.After(grace):
	}

	p.signalGroup(syscall.SIGKILL)
	<-p.done
}

// signalGroup signals the whole process group, falling back to the leader
// alone if the group is already gone.
func (p *process) signalGroup(sig syscall.Signal) {
	pid := p.pid()
	if pid == 0 {
		return
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		_ = p.cmd.Process.Signal(sig)
	}
}
