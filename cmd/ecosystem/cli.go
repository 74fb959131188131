package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ecosystem.dev/internal/config"
	"ecosystem.dev/internal/ecosystem"
	"ecosystem.dev/internal/launcher"
	"ecosystem.dev/internal/log"
	"ecosystem.dev/internal/process"
	"github.com/spf13/pflag"
)

type Command interface {
	Name() string
	Description() string

	// Parse is given an allocated flagSet, and the set of args that are specific to this command.
	// It should parse the args, and return an error if unexpected values were received in the flags.
	Parse(flagSet *pflag.FlagSet, args []string) error

	// Run should run the command, and return an error if something went wrong.
	Run() error
}

var (
	commands = []Command{
		&StartCommand{},
		&StopCommand{},
		&StatusCommand{},
		&LogsCommand{},
		&ServeCommand{},
		&VersionCommand{},
	}

	// Set by the global -c flag
	configFlag string
)

func showUsageFooter() {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "ecosystem %s\n\n", config.GetVersion())
}

func showUsage() {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Usage: ecosystem [-c $ECOSYSTEM_CONFIG] [--verbose] [command] [options]\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Commands act on the closest ecosystem file (%s), looking in the current directory and then its parents.\n", strings.Join(config.ConfigFileNames, ", "))
	fmt.Fprintf(os.Stderr, "You can also pick a file using the `-c` flag or the `ECOSYSTEM_CONFIG` environment variable.\n")
	fmt.Fprintf(os.Stderr, "\n")

	fmt.Fprintf(os.Stderr, "Available commands:\n\n")

	longestCmdNameLength := 0
	for _, cmd := range commands {
		if len(cmd.Name()) > longestCmdNameLength {
			longestCmdNameLength = len(cmd.Name())
		}
	}

	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "\t%s%s\t%s\n", cmd.Name(), strings.Repeat(" ", longestCmdNameLength-len(cmd.Name())), cmd.Description())
	}

	showUsageFooter()
	os.Exit(1)
}

func showCommandUsage(cmd Command, flagSet *pflag.FlagSet) {
	shortUsage := fmt.Sprintf("%s [options]", cmd.Name())

	// allow commands to override the short usage text
	if cmdWithShortUsage, ok := cmd.(interface{ ShortUsage() string }); ok {
		shortUsage = cmdWithShortUsage.ShortUsage()
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Usage: ecosystem %s\n", shortUsage)
	fmt.Fprintf(os.Stderr, "%s\n", cmd.Description())
	fmt.Fprintf(os.Stderr, "\n")

	if flagSet.HasFlags() {
		flagSet.PrintDefaults()
	} else {
		fmt.Fprintf(os.Stderr, "This command has no options.\n")
	}

	showUsageFooter()
	os.Exit(1)
}

// loadEcosystem finds and parses the ecosystem file the command should act on.
func loadEcosystem() (ecosystem.File, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return ecosystem.File{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	configPath, err := config.FindConfigPath(configFlag, cwd)
	if err != nil {
		return ecosystem.File{}, err
	}

	return ecosystem.Load(configPath)
}

func defaultLauncher() (*launcher.Launcher, error) {
	manager, err := process.DefaultManager()
	if err != nil {
		return nil, fmt.Errorf("failed to open process database: %w", err)
	}
	return launcher.New(manager), nil
}

func main() {
	globalFlags := pflag.NewFlagSet("ecosystem", pflag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}

	var verbose bool
	globalFlags.StringVarP(&configFlag, "config", "c", "", "Path to the ecosystem file")
	globalFlags.BoolVar(&verbose, "verbose", false, "Print debug logs")

	if err := globalFlags.Parse(os.Args[1:]); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		showUsage()
	}
	args := globalFlags.Args()

	if len(args) == 0 || args[0] == "help" {
		showUsage()
	}

	log.SetVerbose(verbose)
	log.SetOutputFile(filepath.Join(config.GetLogsPath(), "ecosystem.log"))

	commandName := args[0]
	args = args[1:]

	// Make sure this is a real command
	var command Command
	for _, cmd := range commands {
		if cmd.Name() == commandName {
			command = cmd
			break
		}
	}

	if command == nil {
		fmt.Fprintf(os.Stderr, "unrecognized command: %s\n\n", commandName)
		showUsage()
	}

	// Perform parsing
	flagSet := pflag.NewFlagSet(commandName, pflag.ContinueOnError)
	flagSet.Usage = func() {}
	if err := command.Parse(flagSet, args); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		showCommandUsage(command, flagSet)
	}

	startTime := time.Now()
	if err := command.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
		os.Exit(1)
	}

	if verbose {
		execDuration := (time.Since(startTime) + time.Millisecond).Truncate(time.Millisecond)
		fmt.Fprintf(os.Stderr, "\n%s completed in %s\n", commandName, execDuration)
	}
}
