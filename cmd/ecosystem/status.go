package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/pflag"
)

type StatusCommand struct {
	json bool
}

func (cmd *StatusCommand) Name() string {
	return "status"
}

func (cmd *StatusCommand) Description() string {
	return "Show which apps are running"
}

func (cmd *StatusCommand) Parse(flagSet *pflag.FlagSet, args []string) error {
	flagSet.BoolVar(&cmd.json, "json", false, "Print the status as JSON")

	return flagSet.Parse(args)
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	runningStyle = cellStyle.Foreground(lipgloss.Color("2"))
	stoppedStyle = cellStyle.Foreground(lipgloss.Color("8"))
)

func (cmd *StatusCommand) Run() error {
	file, err := loadEcosystem()
	if err != nil {
		return err
	}

	l, err := defaultLauncher()
	if err != nil {
		return err
	}

	statuses := l.Status(file)

	if cmd.json {
		buf, err := json.MarshalIndent(statuses, "", "\t")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Printf("%s\n", buf)
		return nil
	}

	now := time.Now()
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		pid, state, uptime := "-", "stopped", "-"
		if status.Process != nil {
			pid = strconv.Itoa(status.Process.Pid)
			if status.Alive {
				state = "running"
				uptime = status.Uptime(now).Truncate(time.Second).String()
			} else if status.Process.ExitCode != nil {
				state = fmt.Sprintf("exited (%d)", *status.Process.ExitCode)
			} else {
				state = "exited"
			}
		}

		rows = append(rows, []string{status.Name, state, pid, uptime, status.Command})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("APP", "STATUS", "PID", "UPTIME", "COMMAND").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1 && rows[row][1] == "running":
				return runningStyle
			case col == 1:
				return stoppedStyle
			default:
				return cellStyle
			}
		})

	fmt.Printf("%s\n%s\n", file.Path, t)
	return nil
}
