package ecosystem

import (
	"path/filepath"
	"strings"
)

// InterpreterNone means the script is executed directly.
const InterpreterNone = "none"

// An App describes how to launch one worker process.
type App struct {
	// Name identifies the app, and must be unique within an ecosystem file
	Name string `json:"name" yaml:"name"`
	// Script is the executable, either a path or a name to look up in $PATH
	Script string `json:"script" yaml:"script"`
	// Args are passed to the script
	Args Args `json:"args,omitempty" yaml:"args,omitempty"`
	// Cwd is the working directory the process is launched from
	Cwd string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	// Interpreter runs the script, unless it is empty or "none"
	Interpreter string `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`
	// Output is where stdout (and stderr, unless Error is set) is written to
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	// Error is an optional separate destination for stderr
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// Env is layered on top of the launcher's own environment
	Env Env `json:"env,omitempty" yaml:"env,omitempty"`
}

func (app App) usesInterpreter() bool {
	return app.Interpreter != "" && app.Interpreter != InterpreterNone
}

// Command returns the program to execute, and the arguments to pass it.
func (app App) Command() (string, []string, error) {
	args, err := app.Args.Values()
	if err != nil {
		return "", nil, err
	}

	if !app.usesInterpreter() {
		return app.Script, args, nil
	}

	return app.Interpreter, append([]string{app.Script}, args...), nil
}

// CommandLine is the command as a single human readable string.
func (app App) CommandLine() string {
	command, args, err := app.Command()
	if err != nil {
		return strings.TrimSpace(app.Script + " " + app.Args.String())
	}
	return strings.Join(append([]string{command}, args...), " ")
}

func resolvePath(baseDir string, target string) string {
	if target == "" || filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(baseDir, filepath.FromSlash(target))
}

// Resolve returns a copy of the app with every relative path made absolute.
// The working directory, output and error paths are relative to baseDir, which
// is normally the folder holding the ecosystem file. A script that is given as
// a relative path is relative to the app's working directory.
func (app App) Resolve(baseDir string) App {
	resolved := app

	if resolved.Cwd == "" {
		resolved.Cwd = baseDir
	} else {
		resolved.Cwd = resolvePath(baseDir, resolved.Cwd)
	}
	resolved.Cwd = filepath.Clean(resolved.Cwd)

	if strings.ContainsRune(resolved.Script, '/') || strings.ContainsRune(resolved.Script, filepath.Separator) {
		resolved.Script = resolvePath(resolved.Cwd, resolved.Script)
	}

	resolved.Output = resolvePath(baseDir, resolved.Output)
	resolved.Error = resolvePath(baseDir, resolved.Error)

	if app.Env != nil {
		resolved.Env = make(Env, len(app.Env))
		for k, v := range app.Env {
			resolved.Env[k] = v
		}
	}
	if app.Args.List != nil {
		resolved.Args = ArgsFromList(append([]string(nil), app.Args.List...)...)
	}

	return resolved
}

func validName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

func (app App) validate() error {
	if strings.TrimSpace(app.Name) == "" {
		return ErrMissingName
	}

	if !validName(app.Name) {
		return ErrInvalidName
	}

	if strings.TrimSpace(app.Script) == "" {
		return ErrMissingScript
	}

	if _, err := app.Args.Values(); err != nil {
		return err
	}

	return nil
}
