//go:build windows

package process

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// treeTerminator force-kills the process and all of its descendants by PID.
// Windows has no process-group signal a console-less child will honour.
type treeTerminator struct{}

// NewTerminator returns the platform terminator: forced process-tree kill.
func NewTerminator() Terminator { return treeTerminator{} }

func (treeTerminator) Terminate(h *Handle) error {
	pid, start, started := h.cancel()
	if !started || pid <= 0 {
		return nil
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		// already gone
		return nil
	}
	// Guard against PID reuse after the dev server exited on its own.
	if start != 0 {
		if ms, err := p.CreateTime(); err == nil && ms/1000 != start {
			return nil
		}
	}
	return killTree(p)
}

// killTree kills descendants first so none are re-parented and missed.
func killTree(p *gopsproc.Process) error {
	children, _ := p.Children()
	for _, c := range children {
		_ = killTree(c)
	}
	if err := p.Kill(); err != nil {
		if ok, _ := gopsproc.PidExists(p.Pid); !ok {
			return nil
		}
		return err
	}
	return nil
}

func pidAlive(pid int) bool {
	ok, err := gopsproc.PidExists(int32(pid))
	return err == nil && ok
}
