package process

import (
	"errors"
	"fmt"
)

var (
	ErrProcessNotFound      = errors.New("process not found")
	ErrProcessAlreadyExists = errors.New("process already exists")
	ErrInvalidId            = errors.New("invalid process id")
)

func processNotFound(id ProcessId) error {
	return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
}

func processExists(id ProcessId) error {
	return fmt.Errorf("%w: %s (still running)", ErrProcessAlreadyExists, id)
}

func invalidId(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidId, fmt.Sprintf(format, args...))
}
