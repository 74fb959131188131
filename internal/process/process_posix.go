//go:build !windows

package process

import (
	"fmt"
	"syscall"
)

func getProcessSysAttrs() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// signalGroup sends sig to the whole process group, so children started by the
// app go down with it. We will not treat ESRCH as an error, since it means the
// process is already dead.
func signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil && err != syscall.ESRCH {
		// The group may be gone while the leader lingers
		if err := syscall.Kill(pid, sig); err != nil && err != syscall.ESRCH {
			return err
		}
	}
	return nil
}

func terminate(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

// Kill will kill the process with the given id (not PID), and remove it from
// the internal database.
func (w *WHandle) Kill(id ProcessId) error {
	procEntry, found := w.db.Find(findById(id))
	if !found {
		return processNotFound(id)
	}

	if procEntry.ExitedAt == nil {
		if err := signalGroup(procEntry.Pid, syscall.SIGKILL); err != nil {
			return fmt.Errorf("failed to kill process: %w", err)
		}
	}

	if err := w.db.Delete(findById(id)); err != nil {
		return err
	}

	return nil
}
