package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotRunning is returned when no live daemon owns the pid file.
var ErrNotRunning = errors.New("daemon is not running")

// ProcessStatus describes the daemon process recorded in the pid file.
type ProcessStatus struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	PIDFile string `json:"pid_file"`
	Stale   bool   `json:"stale,omitempty"`
}

// WritePIDFile records the current process. It refuses to overwrite the pid
// file of another live daemon.
func WritePIDFile(path string) error {
	if pid, err := ReadPIDFile(path); err == nil && pid != os.Getpid() && processAlive(pid) {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// RemovePIDFile deletes the pid file if it still names this process.
func RemovePIDFile(path string) {
	if pid, err := ReadPIDFile(path); err == nil && pid == os.Getpid() {
		os.Remove(path)
	}
}

// ReadPIDFile parses the pid stored at path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %q", string(data))
	}
	return pid, nil
}

// Status reports whether the process named in the pid file is alive.
func Status(pidFile string) ProcessStatus {
	st := ProcessStatus{PIDFile: pidFile}
	pid, err := ReadPIDFile(pidFile)
	if err != nil {
		st.Stale = !os.IsNotExist(err)
		return st
	}
	st.PID = pid
	st.Running = processAlive(pid)
	st.Stale = !st.Running
	return st
}

// Stop asks the daemon named in the pid file to shut down.
func Stop(pidFile string) (int, error) {
	st := Status(pidFile)
	if !st.Running {
		if st.Stale {
			os.Remove(pidFile)
		}
		return 0, ErrNotRunning
	}
	if err := terminate(st.PID); err != nil {
		return st.PID, fmt.Errorf("failed to signal daemon: %w", err)
	}
	return st.PID, nil
}
