//go:build !windows

package process

import "os/exec"

// shellCommand returns a shell invocation for Unix systems
func shellCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("/bin/sh", "-c", script)
}

func needsShell(line string) bool { return hasShellMeta(line) }
