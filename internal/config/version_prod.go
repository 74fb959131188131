//go:build prod

package config

// Set with -ldflags "-X ecosystem.dev/internal/config.buildVersion=..."
var buildVersion = "unknown"

func GetVersion() string {
	return buildVersion
}
