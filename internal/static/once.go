package static

import "sync"

// CreateOnce lazily initializes a value. The creator runs on the first call,
// and every later call gets the same value and error back.
func CreateOnce[T any](creator func() (T, error)) func() (T, error) {
	return sync.OnceValues(creator)
}
