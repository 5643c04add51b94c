//go:build !windows

package process

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"strconv"
	"syscall"
)

// groupTerminator signals the whole process group created by Setpgid.
type groupTerminator struct {
	sig syscall.Signal
}

// NewTerminator returns the platform terminator: SIGTERM to the process group.
func NewTerminator() Terminator { return groupTerminator{sig: syscall.SIGTERM} }

func (t groupTerminator) Terminate(h *Handle) error {
	pid, start, started := h.cancel()
	if !started || pid <= 0 {
		return nil
	}
	// A live pid with another start time is an unrelated process that reused
	// the number, and its group is not ours. A pgid is never handed out while
	// its group has members, so a vanished leader still leaves -pid safe.
	if start != 0 {
		if cur := getProcStartUnix(pid); cur != 0 && cur != start {
			return nil
		}
	}
	// The group id outlives the leader while any member is alive, so this
	// also reaches workers orphaned by an already-exited leader.
	err := syscall.Kill(-pid, t.sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func pidAlive(pid int) bool {
	if runtime.GOOS == "linux" && isZombieLinux(pid) {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// isZombieLinux returns true if /proc/<pid>/status reports a zombie state (Z).
func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
