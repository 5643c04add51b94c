package process

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// PortPlaceholder is replaced by the service port when the dev-server
// command template is expanded.
const PortPlaceholder = "{port}"

// DefaultCommand is the dev-server command used when none is configured.
const DefaultCommand = "npm run dev -- --port " + PortPlaceholder

// Spec describes the dev-server process for one service.
type Spec struct {
	ServiceID   string   `json:"service_id"`
	ServiceName string   `json:"service_name"`
	Port        int      `json:"port"`
	WorkDir     string   `json:"work_dir"`
	Command     string   `json:"command"` // template; {port} is expanded
	Env         []string `json:"env,omitempty"`
}

// CommandLine returns Command with the port placeholder expanded.
func (s Spec) CommandLine() string {
	tmpl := strings.TrimSpace(s.Command)
	if tmpl == "" {
		tmpl = DefaultCommand
	}
	return strings.ReplaceAll(tmpl, PortPlaceholder, strconv.Itoa(s.Port))
}

// BuildCommand constructs an *exec.Cmd for the expanded command line.
// It avoids invoking a shell when not necessary; when shell metacharacters
// are present (or the platform requires it) the line runs under the shell.
func (s Spec) BuildCommand() *exec.Cmd {
	line := s.CommandLine()
	var cmd *exec.Cmd
	if needsShell(line) {
		cmd = shellCommand(line)
	} else {
		parts := strings.Fields(line)
		// #nosec G204
		cmd = exec.Command(parts[0], parts[1:]...)
	}
	cmd.Dir = s.WorkDir
	env := append(os.Environ(), s.Env...)
	cmd.Env = append(env, "PORT="+strconv.Itoa(s.Port))
	configureSysProcAttr(cmd)
	return cmd
}

func hasShellMeta(line string) bool {
	return strings.ContainsAny(line, "|&;<>*?`$\"'(){}[]~")
}
