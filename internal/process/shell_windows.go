//go:build windows

package process

import "os/exec"

// shellCommand returns a shell invocation for Windows systems
func shellCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("cmd", "/c", script)
}

// needsShell is always true on Windows: npm and friends are .cmd shims
// that only resolve through cmd.exe.
func needsShell(string) bool { return true }
