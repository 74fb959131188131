package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ecosystem.dev/internal/health"
	"ecosystem.dev/internal/identity"
	"ecosystem.dev/internal/log"
	"ecosystem.dev/internal/model"
	"ecosystem.dev/internal/pubsub"
)

var (
	logger = log.New("process")
)

// An identifier for a process. The category namespaces the process, the key
// is the name it has been given.
type ProcessId identity.Id

func NewId(category string, key string) (ProcessId, error) {
	if !strings.HasPrefix(category, "/") {
		return ProcessId{}, invalidId("category '%s' must start with '/'", category)
	}
	if key == "" {
		return ProcessId{}, invalidId("missing key")
	}

	return ProcessId{Category: category, Key: key}, nil
}

func InternalId(key string) ProcessId {
	return ProcessId{Category: identity.Category("internal"), Key: key}
}

func (id ProcessId) String() string {
	return identity.Id(id).String()
}

type ProcessConfig struct {
	Id      ProcessId
	WorkDir string
	Env     map[string]string
	Command string
	Args    []string

	// OutputPath receives stdout, and stderr unless ErrorPath is set. When empty,
	// output goes to the manager's logs folder.
	OutputPath string
	ErrorPath  string
}

type Process struct {
	Id         ProcessId `json:"id"`
	Pid        int       `json:"pid"`
	StartedAt  time.Time `json:"startedAt"`
	WorkDir    string    `json:"workDir"`
	Command    string    `json:"command"`
	Args       []string  `json:"args"`
	OutputPath string    `json:"outputPath"`
	ErrorPath  string    `json:"errorPath,omitempty"`

	// Set once the process has been seen exiting
	ExitedAt *time.Time `json:"exitedAt,omitempty"`
	ExitCode *int       `json:"exitCode,omitempty"`

	// Context is cancelled once the process exits. It is only filled in on
	// values handed out by the manager.
	Context context.Context `json:"-"`
}

func (process *Process) osProcessIsAlive() bool {
	return health.PidIsAlive(process.Pid)
}

// processState tracks the lifetime of a process this manager knows about,
// either because it spawned it, or because it is polling its pid.
type processState struct {
	pid    int
	ctx    context.Context
	cancel context.CancelFunc
}

func findById(id ProcessId) func(row Process) bool {
	return func(row Process) bool {
		return row.Id == id
	}
}

func findByIdAndPid(id ProcessId, pid int) func(row Process) bool {
	return func(row Process) bool {
		return row.Id == id && row.Pid == pid
	}
}

func (cfg *ProcessConfig) fillEmptyValues() error {
	if cfg.Id.Key == "" {
		return fmt.Errorf("cannot create process without a Key")
	}

	if cfg.Id.Category == "" {
		return fmt.Errorf("cannot create process without a Category")
	}

	if cfg.Command == "" {
		return fmt.Errorf("cannot create process without a Command")
	}

	parentEnv := os.Environ()
	env := make(map[string]string, len(parentEnv)+len(cfg.Env))

	// copy over parent env first
	for _, envVar := range parentEnv {
		parts := strings.SplitN(envVar, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}

	// then override with any custom env vars
	for k, v := range cfg.Env {
		env[k] = v
	}

	// and replace the config's env with the new one
	cfg.Env = env

	if cfg.WorkDir == "" {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		cfg.WorkDir = dir
	}

	return nil
}

// This is essentially a global type, but it's set up as an instance for testing purposes.
// Use `process.DefaultManager` to manage processes.
type ProcessManager struct {
	registry              *pubsub.Registry
	processLogsFolderPath string
	db                    *model.Store[Process]

	m      sync.Mutex
	states map[ProcessId]*processState
	topics map[ProcessId]*pubsub.Topic[string]
}

func NewProcessManager(registry *pubsub.Registry, processLogsFolderPath string, dbPath string) (*ProcessManager, error) {
	if registry == nil {
		registry = &pubsub.Registry{}
	}

	manager := &ProcessManager{
		registry:              registry,
		processLogsFolderPath: processLogsFolderPath,
		states:                make(map[ProcessId]*processState),
		topics:                make(map[ProcessId]*pubsub.Topic[string]),
	}

	var err error
	manager.db, err = model.NewStore[Process](dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create process database: %w", err)
	}

	return manager, nil
}

// LogsFolder is where output goes for processes spawned without an output path.
func (m *ProcessManager) LogsFolder() string {
	return m.processLogsFolderPath
}

// stateFor returns the lifetime tracker for a process record, and starts
// polling its pid if this manager didn't spawn it.
func (m *ProcessManager) stateFor(process Process) *processState {
	m.m.Lock()
	defer m.m.Unlock()

	if state, found := m.states[process.Id]; found && state.pid == process.Pid {
		return state
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := &processState{pid: process.Pid, ctx: ctx, cancel: cancel}
	m.states[process.Id] = state

	if process.ExitedAt != nil || !process.osProcessIsAlive() {
		cancel()
		return state
	}

	go m.watchPid(state)
	return state
}

func (m *ProcessManager) watchPid(state *processState) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-state.ctx.Done():
			return
		case <-ticker.C:
			if !health.PidIsAlive(state.pid) {
				state.cancel()
				return
			}
		}
	}
}

func (m *ProcessManager) withContext(process Process) *Process {
	process.Context = m.stateFor(process).ctx
	return &process
}

func (r *RHandle) FindById(id ProcessId) (*Process, error) {
	procEntry, found := r.db.Find(findById(id))
	if !found {
		return nil, processNotFound(id)
	}
	return r.m.withContext(procEntry), nil
}

func (r *RHandle) IsAlive(id ProcessId) bool {
	process, err := r.FindById(id)
	if err != nil {
		return false
	}
	return process.Context.Err() == nil
}

// List returns every known process in the category, or every process when the
// category is empty.
func (r *RHandle) List(category string) []Process {
	rows := r.db.Filter(func(row Process) bool {
		return category == "" || row.Id.Category == category
	})

	out := make([]Process, 0, len(rows))
	for _, row := range rows {
		out = append(out, *r.m.withContext(row))
	}
	return out
}

func (w *WHandle) SpawnFromPathVar(config ProcessConfig) (*Process, error) {
	command, err := exec.LookPath(config.Command)
	if err != nil {
		return nil, fmt.Errorf("failed to find command %s in $PATH: %w", config.Command, err)
	}
	config.Command = command

	return w.Spawn(config)
}

func openOutput(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log folder: %w", err)
	}

	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func (w *WHandle) Spawn(procConfig ProcessConfig) (*Process, error) {
	if err := procConfig.fillEmptyValues(); err != nil {
		return nil, err
	}

	prev, found := w.db.Find(findById(procConfig.Id))
	if found {
		if w.m.stateFor(prev).ctx.Err() == nil {
			logger.Debug("Found previous process", log.Ctx{
				"processId": procConfig.Id,
				"pid":       prev.Pid,
			})
			return w.m.withContext(prev), processExists(procConfig.Id)
		}

		logger.Debug("Found previous dead process entry, deleting it", log.Ctx{
			"processId": procConfig.Id,
		})
		if err := w.db.Delete(findById(prev.Id)); err != nil {
			return nil, fmt.Errorf("failed to delete previous process: %w", err)
		}
	}

	logger.Info("Spawning Process", log.Ctx{
		"id":      procConfig.Id,
		"command": procConfig.Command,
		"args":    procConfig.Args,
		"workDir": procConfig.WorkDir,
	})

	empty, err := os.Open(os.DevNull)
	if err != nil {
		return nil, fmt.Errorf("failed to open null device: %w", err)
	}
	defer empty.Close()

	outputPath := procConfig.OutputPath
	if outputPath == "" {
		outputPath = w.m.getLogFilePath(procConfig.Id)
	}

	output, err := openOutput(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	defer output.Close()

	errOutput := output
	if procConfig.ErrorPath != "" {
		errOutput, err = openOutput(procConfig.ErrorPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open error file: %w", err)
		}
		defer errOutput.Close()
	}

	var attr os.ProcAttr
	attr.Env = make([]string, 0, len(procConfig.Env))
	attr.Dir = procConfig.WorkDir
	attr.Files = []*os.File{empty, output, errOutput}
	attr.Sys = getProcessSysAttrs()

	for key, value := range procConfig.Env {
		attr.Env = append(attr.Env, key+"="+value)
	}

	argStrings := append([]string{procConfig.Command}, procConfig.Args...)
	proc, err := os.StartProcess(procConfig.Command, argStrings, &attr)
	if err != nil {
		return nil, err
	}

	entry := Process{
		Id:         procConfig.Id,
		WorkDir:    procConfig.WorkDir,
		StartedAt:  time.Now(),
		Command:    procConfig.Command,
		Args:       procConfig.Args,
		Pid:        proc.Pid,
		OutputPath: outputPath,
		ErrorPath:  procConfig.ErrorPath,
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := &processState{pid: proc.Pid, ctx: ctx, cancel: cancel}

	w.m.m.Lock()
	if prevState, found := w.m.states[entry.Id]; found {
		prevState.cancel()
	}
	w.m.states[entry.Id] = state
	w.m.m.Unlock()

	// Reap zombies
	go w.m.waitForExit(entry, proc, state)

	logger.Debug("Process created", log.Ctx{
		"id":         entry.Id,
		"pid":        entry.Pid,
		"outputPath": outputPath,
	})

	if err := w.db.Insert(entry); err != nil {
		logger.Err(err, "Failed to insert process into database", log.Ctx{
			"id": entry.Id,
		})

		// If we failed to insert the process into the database, kill it
		// so we don't end up with an unmanaged process
		if err := proc.Kill(); err != nil {
			logger.Err(err, "Failed to kill unmanaged process", log.Ctx{
				"process": entry,
			})
		}

		return nil, err
	}

	entry.Context = ctx
	return &entry, nil
}

func (m *ProcessManager) waitForExit(entry Process, proc *os.Process, state *processState) {
	procState, err := proc.Wait()
	state.cancel()

	exitCode := -1
	if procState != nil {
		exitCode = procState.ExitCode()
	}

	if err != nil {
		logger.Debug("Process exited with error", log.Ctx{
			"id":       entry.Id,
			"pid":      entry.Pid,
			"exitCode": exitCode,
			"err":      err.Error(),
		})
	} else {
		logger.Debug("Process exited", log.Ctx{
			"id":       entry.Id,
			"pid":      entry.Pid,
			"exitCode": exitCode,
		})
	}

	exitedAt := time.Now()

	w := m.WriteHandle()
	defer w.Close()

	_, err = w.db.Update(findByIdAndPid(entry.Id, entry.Pid), func(row *Process) {
		row.ExitedAt = &exitedAt
		row.ExitCode = &exitCode
	})
	if err != nil {
		logger.Err(err, "Failed to record process exit", log.Ctx{
			"id": entry.Id,
		})
	}
}

// Remove will kill the process if it is alive, and then remove it from the database
func (w *WHandle) Remove(id ProcessId) error {
	procEntry, found := w.db.Find(findById(id))
	if !found {
		return nil
	}

	if w.m.stateFor(procEntry).ctx.Err() == nil {
		if err := w.Kill(id); err != nil {
			return fmt.Errorf("failed to kill process: %w", err)
		}
	}

	if err := w.db.Delete(findById(id)); err != nil {
		return fmt.Errorf("failed to delete process: %w", err)
	}

	return nil
}

// Stop asks the process to terminate, and kills it if it is still running once
// the grace period is over. The process is removed from the database either way.
func (manager *ProcessManager) Stop(id ProcessId, grace time.Duration) error {
	proc, err := manager.FindById(id)
	if err != nil {
		return err
	}

	if proc.Context.Err() == nil {
		if err := terminate(proc.Pid); err != nil {
			return fmt.Errorf("failed to stop process: %w", err)
		}

		select {
		case <-proc.Context.Done():
		case <-time.After(grace):
			logger.Warn("Process did not stop in time, killing it", log.Ctx{
				"id":    id,
				"pid":   proc.Pid,
				"grace": grace.String(),
			})
		}
	}

	err = manager.Remove(id)
	if errors.Is(err, ErrProcessNotFound) {
		return nil
	}
	return err
}
