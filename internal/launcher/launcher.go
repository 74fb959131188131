package launcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"ecosystem.dev/internal/config"
	"ecosystem.dev/internal/ecosystem"
	"ecosystem.dev/internal/identity"
	"ecosystem.dev/internal/log"
	"ecosystem.dev/internal/process"
)

var logger = log.New("launcher")

// DefaultStopGrace is how long an app gets to exit after SIGTERM before it is killed.
const DefaultStopGrace = 5 * time.Second

// SpawnError reports an app that could not be started.
type SpawnError struct {
	App string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start app '%s': %s", e.App, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Launcher starts and stops the apps declared in ecosystem files.
type Launcher struct {
	Manager *process.ProcessManager

	// StopGrace overrides DefaultStopGrace when set
	StopGrace time.Duration
}

func New(manager *process.ProcessManager) *Launcher {
	return &Launcher{Manager: manager}
}

// Category is the process category shared by every app of an ecosystem file.
// It escapes the whole file path, so two files never share a category.
func Category(file ecosystem.File) string {
	return identity.Category("app", file.Path)
}

// LogFolder names the folder holding the output of apps that don't set one.
// The hash tells apart files whose aliases are the same.
func LogFolder(file ecosystem.File) string {
	sum := sha256.Sum256([]byte(file.Path))
	return config.Alias(file.Dir) + "-" + hex.EncodeToString(sum[:4])
}

func ProcessId(file ecosystem.File, app ecosystem.App) (process.ProcessId, error) {
	return process.NewId(Category(file), app.Name)
}

// ProcessConfigFor maps an app onto the request handed to the process manager.
func ProcessConfigFor(file ecosystem.File, app ecosystem.App) (process.ProcessConfig, error) {
	id, err := ProcessId(file, app)
	if err != nil {
		return process.ProcessConfig{}, err
	}

	resolved := app.Resolve(file.Dir)

	command, args, err := resolved.Command()
	if err != nil {
		return process.ProcessConfig{}, err
	}

	return process.ProcessConfig{
		Id:         id,
		WorkDir:    resolved.Cwd,
		Env:        resolved.Env,
		Command:    command,
		Args:       args,
		OutputPath: resolved.Output,
		ErrorPath:  resolved.Error,
	}, nil
}

type Result struct {
	App     string           `json:"app"`
	Process *process.Process `json:"process,omitempty"`
	// AlreadyRunning is set when the app was left alone because it was running
	AlreadyRunning bool `json:"alreadyRunning,omitempty"`
}

// Launch spawns the named apps, or every app in the file, in declaration order.
// Every app is attempted. Apps that fail to start are reported as *SpawnError
// values joined into the returned error, alongside the apps that did start.
func (l *Launcher) Launch(ctx context.Context, file ecosystem.File, names ...string) ([]Result, error) {
	apps, err := file.Select(names...)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(apps))
	var errs []error

	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, &SpawnError{App: app.Name, Err: err})
			continue
		}

		procConfig, err := ProcessConfigFor(file, app)
		if err != nil {
			errs = append(errs, &SpawnError{App: app.Name, Err: err})
			continue
		}
		if procConfig.OutputPath == "" {
			procConfig.OutputPath = l.defaultOutputPath(file, app)
		}

		proc, err := l.Manager.SpawnFromPathVar(procConfig)
		if errors.Is(err, process.ErrProcessAlreadyExists) {
			logger.Info("App is already running", log.Ctx{
				"app": app.Name,
				"pid": proc.Pid,
			})
			results = append(results, Result{App: app.Name, Process: proc, AlreadyRunning: true})
			continue
		}
		if err != nil {
			logger.Err(err, "Failed to start app", log.Ctx{
				"app":     app.Name,
				"command": app.CommandLine(),
			})
			errs = append(errs, &SpawnError{App: app.Name, Err: err})
			continue
		}

		logger.Info("Started app", log.Ctx{
			"app":    app.Name,
			"pid":    proc.Pid,
			"output": proc.OutputPath,
		})
		results = append(results, Result{App: app.Name, Process: proc})
	}

	return results, errors.Join(errs...)
}

func (l *Launcher) defaultOutputPath(file ecosystem.File, app ecosystem.App) string {
	return filepath.Join(l.Manager.LogsFolder(), "app", LogFolder(file), app.Name+".log")
}

func (l *Launcher) stopGrace() time.Duration {
	if l.StopGrace > 0 {
		return l.StopGrace
	}
	return DefaultStopGrace
}

// Stop terminates the named apps, or every app in the file. Apps that were
// never launched are skipped.
func (l *Launcher) Stop(ctx context.Context, file ecosystem.File, names ...string) ([]string, error) {
	apps, err := file.Select(names...)
	if err != nil {
		return nil, err
	}

	var stopped []string
	var errs []error

	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			return stopped, errors.Join(append(errs, err)...)
		}

		id, err := ProcessId(file, app)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		err = l.Manager.Stop(id, l.stopGrace())
		if errors.Is(err, process.ErrProcessNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to stop app '%s': %w", app.Name, err))
			continue
		}

		logger.Info("Stopped app", log.Ctx{
			"app": app.Name,
		})
		stopped = append(stopped, app.Name)
	}

	return stopped, errors.Join(errs...)
}

type AppStatus struct {
	Name    string           `json:"name"`
	Command string           `json:"command"`
	Alive   bool             `json:"alive"`
	Process *process.Process `json:"process,omitempty"`
}

func (status AppStatus) Uptime(now time.Time) time.Duration {
	if !status.Alive || status.Process == nil {
		return 0
	}
	return now.Sub(status.Process.StartedAt)
}

// Status reports every app in the file, in declaration order.
func (l *Launcher) Status(file ecosystem.File) []AppStatus {
	procs := l.Manager.List(Category(file))

	byName := make(map[string]process.Process, len(procs))
	for _, proc := range procs {
		byName[proc.Id.Key] = proc
	}

	out := make([]AppStatus, 0, len(file.Apps))
	for _, app := range file.Apps {
		status := AppStatus{
			Name:    app.Name,
			Command: app.CommandLine(),
		}

		if proc, found := byName[app.Name]; found {
			status.Process = &proc
			status.Alive = proc.Context.Err() == nil
		}

		out = append(out, status)
	}

	return out
}
