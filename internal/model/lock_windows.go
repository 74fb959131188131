//go:build windows

package model

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

type fileLock struct {
	f *os.File
}

// lockFile blocks until it holds a lock on the first byte of path, shared or
// exclusive.
func lockFile(path string, exclusive bool) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	var flags uint32
	if exclusive {
		flags = windows.LOCKFILE_EXCLUSIVE_LOCK
	}

	overlapped := new(windows.Overlapped)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, overlapped); err != nil {
		f.Close()
		return nil, fmt.Errorf("LockFileEx: %w", err)
	}

	return &fileLock{f: f}, nil
}

func (lock *fileLock) unlock() {
	windows.UnlockFileEx(windows.Handle(lock.f.Fd()), 0, 1, 0, new(windows.Overlapped))
	lock.f.Close()
}
