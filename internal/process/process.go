package process

import (
	"errors"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCancelled is returned by Spawn when the handle was terminated before
// the process could be started.
var ErrCancelled = errors.New("process cancelled before start")

// Handle is the in-memory record of a dev-server process. It is created
// before the spawn so it can be registered first, and it is never persisted.
type Handle struct {
	spec Spec

	mu        sync.Mutex
	cmd       *exec.Cmd
	pid       int
	procStart int64 // OS-reported start time (unix seconds), 0 when unknown
	startedAt time.Time
	cancelled bool
	exitErr   error
	done      chan struct{}

	confirmed atomic.Bool
}

// NewHandle returns an unstarted handle for spec.
func NewHandle(spec Spec) *Handle {
	return &Handle{spec: spec, done: make(chan struct{})}
}

func (h *Handle) ServiceID() string   { return h.spec.ServiceID }
func (h *Handle) ServiceName() string { return h.spec.ServiceName }
func (h *Handle) Port() int           { return h.spec.Port }
func (h *Handle) Spec() Spec          { return h.spec }

// Spawn starts the process and a waiter that closes Done when it exits.
// Spawn must be called at most once.
func (h *Handle) Spawn() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		close(h.done)
		return ErrCancelled
	}
	cmd := h.spec.BuildCommand()
	if err := cmd.Start(); err != nil {
		h.exitErr = err
		close(h.done)
		return err
	}
	h.cmd = cmd
	h.pid = cmd.Process.Pid
	h.startedAt = time.Now()
	h.procStart = getProcStartUnix(h.pid)
	go h.wait(cmd)
	return nil
}

func (h *Handle) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	h.mu.Lock()
	h.exitErr = err
	h.mu.Unlock()
	close(h.done)
}

// cancel marks an unstarted handle so a later Spawn refuses to run.
// It reports whether the handle had a live process at the time of the call.
func (h *Handle) cancel() (pid int, procStart int64, started bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil {
		h.cancelled = true
		return 0, 0, false
	}
	return h.pid, h.procStart, true
}

// PID returns the OS process id, or 0 before Spawn.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

// StartedAt returns when Spawn succeeded.
func (h *Handle) StartedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startedAt
}

// Done is closed when the process has exited (or failed to spawn).
func (h *Handle) Done() <-chan struct{} { return h.done }

// Exited reports whether Done is closed.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitErr is the result of cmd.Wait (or the spawn error). Only meaningful after Done.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Confirm marks the handle as past its startup grace period.
func (h *Handle) Confirm() { h.confirmed.Store(true) }

// Confirmed reports whether Confirm was called.
func (h *Handle) Confirmed() bool { return h.confirmed.Load() }

// Alive reports whether the process is still running.
func (h *Handle) Alive() bool {
	if h.Exited() {
		return false
	}
	pid := h.PID()
	return pid > 0 && pidAlive(pid)
}
