//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

func getProcessSysAttrs() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

// There is no SIGTERM on Windows, so terminating a process kills it.
func terminate(pid int) error {
	osProcess, err := os.FindProcess(pid)
	if err != nil {
		// FindProcess only fails when the process is gone
		return nil
	}
	defer osProcess.Release()

	if err := osProcess.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Kill will kill the process with the given id (not PID), and remove it from
// the internal database.
func (w *WHandle) Kill(id ProcessId) error {
	procEntry, found := w.db.Find(findById(id))
	if !found {
		return processNotFound(id)
	}

	if procEntry.ExitedAt == nil {
		if err := terminate(procEntry.Pid); err != nil {
			return fmt.Errorf("failed to kill process: %w", err)
		}
	}

	return w.db.Delete(findById(id))
}
