package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"ecosystem.dev/internal/static"
)

var (
	aliasRegex = regexp.MustCompile("[^a-zA-Z0-9]+")
	trimRegex  = regexp.MustCompile("^-+|-+$")
)

// GetHomePath returns the folder where the launcher keeps its own state: the
// spawned-process database, its log file, and default app logs. It is taken from
// $ECOSYSTEM_HOME, falling back to ~/.ecosystem, and is created if missing.
var GetHomePath = static.CreateOnce(func() (string, error) {
	homePath := os.Getenv("ECOSYSTEM_HOME")
	if homePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}

		homePath = filepath.Join(home, ".ecosystem")
	}

	homePath, err := filepath.Abs(homePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	// If it doesn't exist, create it
	if err := os.MkdirAll(homePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create home directory: %w", err)
	}

	return homePath, nil
})

func GetHomePathOrExit() string {
	homePath, err := GetHomePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	return homePath
}

func GetLogsPath() string {
	return filepath.Join(GetHomePathOrExit(), "logs")
}

func GetDatabasePath() string {
	return filepath.Join(GetHomePathOrExit(), "data", "processes.json")
}

// Alias turns a path into something that is safe to use as a single directory name.
func Alias(path string) string {
	alias := aliasRegex.ReplaceAllString(filepath.ToSlash(path), "-")
	alias = trimRegex.ReplaceAllString(alias, "")
	if alias == "" {
		return "root"
	}
	return alias
}
