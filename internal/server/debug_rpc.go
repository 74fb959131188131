package server

import (
	"ecosystem.dev/internal/process"
	"ecosystem.dev/internal/rpc"
)

// ListProcesses returns every process the manager knows about, across ecosystem files.
func ListProcesses(server *Server) *rpc.Method[struct{}, []process.Process] {
	return &rpc.Method[struct{}, []process.Process]{
		Name:             "ListProcesses",
		SkipInputParsing: true,
		Run: func(_ rpc.Request[struct{}]) ([]process.Process, *rpc.HttpError) {
			return server.Launcher.Manager.List(""), nil
		},
	}
}
