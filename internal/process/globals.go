package process

import (
	"ecosystem.dev/internal/config"
	"ecosystem.dev/internal/pubsub"
	"ecosystem.dev/internal/static"
)

var Topics pubsub.Registry

// DefaultManager is the manager backed by the launcher's home folder. Tests
// should build their own with NewProcessManager.
var DefaultManager = static.CreateOnce(func() (*ProcessManager, error) {
	return NewProcessManager(&Topics, config.GetLogsPath(), config.GetDatabasePath())
})
