package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
)

type StopCommand struct {
	targetApps []string
}

func (cmd *StopCommand) Name() string {
	return "stop"
}

func (cmd *StopCommand) Description() string {
	return "Stop running apps of the ecosystem file"
}

func (*StopCommand) ShortUsage() string {
	return "stop [apps ...]"
}

func (cmd *StopCommand) Parse(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cmd.targetApps = flagSet.Args()
	return nil
}

func (cmd *StopCommand) Run() error {
	file, err := loadEcosystem()
	if err != nil {
		return err
	}

	l, err := defaultLauncher()
	if err != nil {
		return err
	}

	stopped, err := l.Stop(context.Background(), file, cmd.targetApps...)
	for _, name := range stopped {
		fmt.Printf("Stopped %s\n", name)
	}
	if err != nil {
		return err
	}

	if len(stopped) == 0 {
		fmt.Printf("Nothing to stop\n")
	}
	return nil
}
