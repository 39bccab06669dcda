//go:build !windows

package daemon

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

// detachAttrs starts the child in its own session.
func detachAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// IsDetached reports whether this process leads its own session.
func IsDetached() bool {
	sid, err := unix.Getsid(0)
	if err != nil {
		return false
	}
	return sid == unix.Getpid()
}
