//go:build !windows

package model

import (
	"fmt"
	"os"
	"syscall"
)

type fileLock struct {
	f *os.File
}

// lockFile blocks until it holds a flock on path, shared or exclusive.
func lockFile(path string, exclusive bool) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	how := syscall.LOCK_SH
	if exclusive {
		how = syscall.LOCK_EX
	}

	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}

	return &fileLock{f: f}, nil
}

func (lock *fileLock) unlock() {
	syscall.Flock(int(lock.f.Fd()), syscall.LOCK_UN)
	lock.f.Close()
}
