package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"ecosystem.dev/internal/ecosystem"
	"ecosystem.dev/internal/launcher"
	"ecosystem.dev/internal/log"
	"ecosystem.dev/internal/process"
	"github.com/spf13/pflag"
)

type LogsCommand struct {
	targetApps []string
	lines      int
	follow     bool

	// out replaces stdout when set
	out io.Writer
}

func (cmd *LogsCommand) stdout() io.Writer {
	if cmd.out != nil {
		return cmd.out
	}
	return os.Stdout
}

func (cmd *LogsCommand) Name() string {
	return "logs"
}

func (cmd *LogsCommand) Description() string {
	return "Print the output of apps"
}

func (*LogsCommand) ShortUsage() string {
	return "logs [apps ...] [options]"
}

func (cmd *LogsCommand) Parse(flagSet *pflag.FlagSet, args []string) error {
	flagSet.IntVarP(&cmd.lines, "lines", "n", 20, "Number of lines to print from the end of each log")
	flagSet.BoolVarP(&cmd.follow, "follow", "f", false, "Keep printing new output until interrupted")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if cmd.lines < 0 {
		return fmt.Errorf("invalid number of lines: %d", cmd.lines)
	}

	cmd.targetApps = flagSet.Args()
	return nil
}

// lastLines returns at most n lines from the end of text.
func lastLines(text string, n int) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" || n == 0 {
		return nil
	}

	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func prefixFor(name string, width int) string {
	return log.Colorize(name, fmt.Sprintf("%-*s |", width, name))
}

func (cmd *LogsCommand) Run() error {
	file, err := loadEcosystem()
	if err != nil {
		return err
	}

	apps, err := file.Select(cmd.targetApps...)
	if err != nil {
		return err
	}

	l, err := defaultLauncher()
	if err != nil {
		return err
	}

	width := 0
	for _, app := range apps {
		width = max(width, len(app.Name))
	}

	var printed []ecosystem.App
	for _, app := range apps {
		id, err := launcher.ProcessId(file, app)
		if err != nil {
			return err
		}

		logs, err := l.Manager.GetLogFile(id)
		if errors.Is(err, process.ErrProcessNotFound) {
			fmt.Fprintf(os.Stderr, "%s has not been started\n", app.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read logs of %s: %w", app.Name, err)
		}

		prefix := prefixFor(app.Name, width)
		for _, line := range lastLines(logs.Text, cmd.lines) {
			fmt.Fprintf(cmd.stdout(), "%s %s\n", prefix, line)
		}
		printed = append(printed, app)
	}

	if !cmd.follow || len(printed) == 0 {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmd.followApps(ctx, l, file, printed, width)
}

func (cmd *LogsCommand) followApps(ctx context.Context, l *launcher.Launcher, file ecosystem.File, apps []ecosystem.App, width int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var out sync.Mutex

	// Readers started before a failure are stopped and waited on
	fail := func(err error) error {
		cancel()
		wg.Wait()
		return err
	}

	for _, app := range apps {
		id, err := launcher.ProcessId(file, app)
		if err != nil {
			return fail(err)
		}

		sub, err := l.Manager.SubscribeLogs(id)
		if err != nil {
			return fail(fmt.Errorf("failed to follow logs of %s: %w", app.Name, err))
		}

		prefix := prefixFor(app.Name, width)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sub.Unsubscribe()

			for {
				select {
				case line, ok := <-sub.Out:
					if !ok {
						return
					}
					out.Lock()
					fmt.Fprintf(cmd.stdout(), "%s %s\n", prefix, line)
					out.Unlock()

				case <-ctx.Done():
					return
				}
			}
		}()
	}

	wg.Wait()
	return nil
}
