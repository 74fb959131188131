package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigFileNames are the ecosystem file names that are discovered automatically,
// in order of preference.
var ConfigFileNames = []string{
	"ecosystem.json",
	"ecosystem.yaml",
	"ecosystem.yml",
	"ecosystem.hcl",
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

type ConfigNotFoundError struct {
	visited []string
}

func (e ConfigNotFoundError) Error() string {
	var sb strings.Builder

	sb.WriteString("Could not find an ecosystem file (")
	sb.WriteString(strings.Join(ConfigFileNames, ", "))
	sb.WriteString(")\n\n")
	sb.WriteString("Checked:\n")
	for _, dir := range e.visited {
		sb.WriteString(fmt.Sprintf("\t%s\n", dir))
	}
	sb.WriteString("\n")

	return sb.String()
}

func configFileIn(dir string) (string, bool) {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func findConfigPath(currentDir string, visited []string) (string, error) {
	if configPath, ok := configFileIn(currentDir); ok {
		return configPath, nil
	}

	parent := filepath.Dir(currentDir)
	if parent == currentDir {
		return "", ConfigNotFoundError{visited: append(visited, currentDir)}
	}

	return findConfigPath(parent, append(visited, currentDir))
}

// FindConfigPath resolves the ecosystem file to use. An explicit path wins, then
// $ECOSYSTEM_CONFIG, and otherwise the closest ecosystem file found by walking up
// from startDir.
func FindConfigPath(explicitPath string, startDir string) (string, error) {
	if explicitPath == "" {
		explicitPath = os.Getenv("ECOSYSTEM_CONFIG")
	}

	if explicitPath != "" {
		configPath, err := filepath.Abs(explicitPath)
		if err != nil {
			return "", fmt.Errorf("failed to resolve config path: %w", err)
		}

		// A directory is treated as a hint, the file inside it still has to be found
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			if found, ok := configFileIn(configPath); ok {
				return found, nil
			}
			return "", ConfigNotFoundError{visited: []string{configPath}}
		}

		if !fileExists(configPath) {
			return "", ConfigNotFoundError{visited: []string{configPath}}
		}
		return configPath, nil
	}

	startDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}

	return findConfigPath(filepath.Clean(startDir), nil)
}
