package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DetachedEnv marks a child started by Detach.
const DetachedEnv = "CLIPKEEP_DAEMON"

// DetachFlag is stripped from the child's arguments.
const DetachFlag = "--detach"

// Detach re-executes the binary in a new session with its output appended
// to outputFile, and returns the child pid. The child writes its own pid
// file once it is running.
func Detach(executable string, args []string, outputFile string, logger *zap.Logger) (int, error) {
	filtered := make([]string, 0, len(args))
	for _, arg := range args {
		if arg != DetachFlag && !strings.HasPrefix(arg, DetachFlag+"=") {
			filtered = append(filtered, arg)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", err)
	}
	out, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer out.Close()

	cmd := exec.Command(executable, filtered...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), DetachedEnv+"=1")
	if wd, err := os.Getwd(); err == nil {
		cmd.Dir = wd
	}
	detachAttrs(cmd)

	logger.Debug("Starting detached daemon", zap.String("executable", executable), zap.Strings("args", filtered))
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release daemon process: %w", err)
	}
	return pid, nil
}
