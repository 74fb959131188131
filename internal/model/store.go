package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// A Store is a table of rows kept in a JSON file. Several processes may share
// the file: every handle holds an advisory lock on a sibling ".lock" file and
// reloads the rows from disk before using them.
type Store[Model any] struct {
	// FilePath is the path to the json file where the data should be stored.
	FilePath string

	data []Model
	mux  sync.Mutex
}

type WHandle[Model any] struct {
	store *Store[Model]
	lock  *fileLock

	// err is set when the rows could not be reloaded, and fails every write
	err error
}

type RHandle[Model any] struct {
	store *Store[Model]
	lock  *fileLock
}

// NewStore creates a store backed by the file at filePath, loading any rows that
// were saved by a previous run.
func NewStore[Model any](filePath string) (*Store[Model], error) {
	store := &Store[Model]{FilePath: filePath}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

func (store *Store[Model]) Open() error {
	store.mux.Lock()
	defer store.mux.Unlock()

	lock, err := store.lock(false)
	if err != nil {
		return err
	}
	defer lock.unlock()

	return store.load()
}

func (store *Store[Model]) lockPath() string {
	return store.FilePath + ".lock"
}

func (store *Store[Model]) lock(exclusive bool) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(store.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create datastore folder: %w", err)
	}

	lock, err := lockFile(store.lockPath(), exclusive)
	if err != nil {
		return nil, fmt.Errorf("failed to lock datastore: %w", err)
	}
	return lock, nil
}

// load replaces the rows in memory with the ones on disk.
func (store *Store[Model]) load() error {
	buf, err := os.ReadFile(store.FilePath)
	if os.IsNotExist(err) {
		store.data = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}

	if len(buf) == 0 {
		store.data = nil
		return nil
	}

	var data []Model
	if err := json.Unmarshal(buf, &data); err != nil {
		return fmt.Errorf("failed to unmarshal datastore: %w", err)
	}

	store.data = data
	return nil
}

// WriteHandle locks the store for this process and every other one sharing
// the file. The handle must be closed.
func (store *Store[Model]) WriteHandle() WHandle[Model] {
	store.mux.Lock()

	lock, err := store.lock(true)
	if err != nil {
		return WHandle[Model]{store: store, err: err}
	}

	return WHandle[Model]{store: store, lock: lock, err: store.load()}
}

// ReadHandle locks the store against writers. Reads see the last rows that
// could be loaded, even if reloading failed.
func (store *Store[Model]) ReadHandle() RHandle[Model] {
	store.mux.Lock()

	lock, err := store.lock(false)
	if err != nil {
		return RHandle[Model]{store: store}
	}

	// A broken file keeps the previous rows around
	_ = store.load()

	return RHandle[Model]{store: store, lock: lock}
}

func (w *WHandle[Model]) Close() {
	if w.lock != nil {
		w.lock.unlock()
	}
	w.store.mux.Unlock()
}

func (r *RHandle[Model]) Close() {
	if r.lock != nil {
		r.lock.unlock()
	}
	r.store.mux.Unlock()
}

func (w *WHandle[Model]) Insert(row Model) error {
	if w.err != nil {
		return w.err
	}

	w.store.data = append(w.store.data, row)

	return w.store.flush()
}

func (w *WHandle[Model]) Find(matcher func(row Model) bool) (Model, bool) {
	r := RHandle[Model]{store: w.store}
	return r.Find(matcher)
}

func (w *WHandle[Model]) Filter(matcher func(row Model) bool) []Model {
	r := RHandle[Model]{store: w.store}
	return r.Filter(matcher)
}

// Update applies fn to every row that matches, and returns how many rows changed.
func (w *WHandle[Model]) Update(matcher func(row Model) bool, fn func(row *Model)) (int, error) {
	if w.err != nil {
		return 0, w.err
	}

	count := 0
	for i := range w.store.data {
		if matcher(w.store.data[i]) {
			fn(&w.store.data[i])
			count += 1
		}
	}

	if count == 0 {
		return 0, nil
	}

	return count, w.store.flush()
}

func (w *WHandle[Model]) Delete(matcher func(row Model) bool) error {
	if w.err != nil {
		return w.err
	}

	// Filtering in place, see
	// https://github.com/golang/go/wiki/SliceTricks#filtering-without-allocating
	data := w.store.data
	out := data[:0]
	for _, row := range data {
		if !matcher(row) {
			out = append(out, row)
		}
	}

	// Clear out previous items to ensure garbage collection
	var zero Model
	for i := len(out); i < len(data); i++ {
		data[i] = zero
	}

	w.store.data = out

	return w.store.flush()
}

func (r *RHandle[Model]) Find(matcher func(row Model) bool) (Model, bool) {
	for _, row := range r.store.data {
		if matcher(row) {
			return row, true
		}
	}

	var zero Model
	return zero, false
}

// Filter returns a copy of every row that matches, in insertion order.
func (r *RHandle[Model]) Filter(matcher func(row Model) bool) []Model {
	var out []Model
	for _, row := range r.store.data {
		if matcher(row) {
			out = append(out, row)
		}
	}
	return out
}

func (store *Store[Model]) Find(matcher func(row Model) bool) (Model, bool) {
	r := store.ReadHandle()
	defer r.Close()

	return r.Find(matcher)
}

func (store *Store[Model]) Filter(matcher func(row Model) bool) []Model {
	r := store.ReadHandle()
	defer r.Close()

	return r.Filter(matcher)
}

func (store *Store[_]) flush() error {
	buf, err := json.Marshal(store.data)
	if err != nil {
		return fmt.Errorf("failed to marshal datastore: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(store.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create datastore folder: %w", err)
	}

	// Write to a sibling file and rename it into place
	tmpPath := store.FilePath + ".tmp"
	if err := os.WriteFile(tmpPath, buf, 0644); err != nil {
		return fmt.Errorf("failed to save datastore: %w", err)
	}

	if err := os.Rename(tmpPath, store.FilePath); err != nil {
		return fmt.Errorf("failed to save datastore: %w", err)
	}

	return nil
}
