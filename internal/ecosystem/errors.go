package ecosystem

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAppNotFound   = errors.New("app not found")
	ErrUnknownFormat = errors.New("unknown ecosystem file format")
	ErrMissingApps   = errors.New("missing 'apps' list")
	ErrMissingName   = errors.New("missing 'name' field")
	ErrInvalidName   = errors.New("invalid 'name' field")
	ErrMissingScript = errors.New("missing 'script' field")
	ErrDuplicateName = errors.New("duplicate app name")
	ErrInvalidArgs   = errors.New("invalid 'args' field")
	ErrInvalidEnv    = errors.New("invalid 'env' field")
)

// ParseError is returned for any ecosystem file that can't be turned into a
// list of apps. Index is the position of the offending app, or -1 when the
// problem isn't tied to a single app.
type ParseError struct {
	Path  string
	Index int
	Name  string
	Err   error
}

func (e *ParseError) Error() string {
	var sb strings.Builder

	sb.WriteString("failed to parse ecosystem file")
	if e.Path != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Path)
	}

	if e.Index >= 0 {
		sb.WriteString(fmt.Sprintf(": app #%d", e.Index))
		if e.Name != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", e.Name))
		}
	}

	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())

	return sb.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func fileError(path string, err error) *ParseError {
	return &ParseError{Path: path, Index: -1, Err: err}
}

func appError(path string, index int, name string, err error) *ParseError {
	return &ParseError{Path: path, Index: index, Name: name, Err: err}
}

func appNotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrAppNotFound, name)
}
