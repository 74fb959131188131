package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"ecosystem.dev/internal/launcher"
	"github.com/spf13/pflag"
)

type StartCommand struct {
	targetApps []string
}

func (cmd *StartCommand) Name() string {
	return "start"
}

func (cmd *StartCommand) Description() string {
	return "Start the apps of the ecosystem file"
}

func (*StartCommand) ShortUsage() string {
	return "start [apps ...]"
}

func (cmd *StartCommand) Parse(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cmd.targetApps = flagSet.Args()
	return nil
}

func (cmd *StartCommand) Run() error {
	file, err := loadEcosystem()
	if err != nil {
		return err
	}

	l, err := defaultLauncher()
	if err != nil {
		return err
	}

	results, err := l.Launch(context.Background(), file, cmd.targetApps...)
	return reportLaunch(os.Stdout, os.Stderr, results, err)
}

// reportLaunch prints what Launch did. Spawn failures are listed one per line
// and summed up in the returned error.
func reportLaunch(stdout, stderr io.Writer, results []launcher.Result, err error) error {
	for _, result := range results {
		if result.AlreadyRunning {
			fmt.Fprintf(stdout, "%s is already running (pid %d)\n", result.App, result.Process.Pid)
		} else {
			fmt.Fprintf(stdout, "Started %s (pid %d), output in %s\n", result.App, result.Process.Pid, result.Process.OutputPath)
		}
	}

	var spawnErr *launcher.SpawnError
	if !errors.As(err, &spawnErr) {
		return err
	}

	failures := spawnErrors(err)
	for _, failure := range failures {
		fmt.Fprintf(stderr, "%s\n", failure)
	}
	return fmt.Errorf("%d of %d apps failed to start", len(failures), len(results)+len(failures))
}

// spawnErrors flattens the error returned by Launcher.Launch.
func spawnErrors(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	if err != nil {
		return []error{err}
	}
	return nil
}
