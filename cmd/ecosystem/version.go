package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"ecosystem.dev/internal/config"
	"github.com/spf13/pflag"
)

type VersionCommand struct{}

func (c *VersionCommand) Name() string {
	return "version"
}

func (c *VersionCommand) Description() string {
	return "Print the version info of ecosystem"
}

func (c *VersionCommand) Parse(flagSet *pflag.FlagSet, args []string) error {
	return flagSet.Parse(args)
}

func (c *VersionCommand) Run() error {
	versionInfo := map[string]string{
		"version": config.GetVersion(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}

	if homePath, err := config.GetHomePath(); err == nil {
		versionInfo["home"] = homePath
	}

	buf, err := json.MarshalIndent(versionInfo, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal version info: %w", err)
	}

	fmt.Printf("%s\n", buf)
	return nil
}
