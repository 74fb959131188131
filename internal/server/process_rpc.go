package server

import (
	"errors"
	"fmt"
	"net/http"

	"ecosystem.dev/internal/ecosystem"
	"ecosystem.dev/internal/launcher"
	"ecosystem.dev/internal/process"
	"ecosystem.dev/internal/rpc"
)

type AppInput struct {
	Name string `json:"name"`
}

func (server *Server) processIdFor(name string) (process.ProcessId, *rpc.HttpError) {
	file, httpErr := server.loadFile()
	if httpErr != nil {
		return process.ProcessId{}, httpErr
	}

	app, found := file.Find(name)
	if !found {
		return process.ProcessId{}, rpc.Errorf(http.StatusNotFound, "%s: %s", ecosystem.ErrAppNotFound, name)
	}

	id, err := launcher.ProcessId(file, app)
	if err != nil {
		return process.ProcessId{}, rpc.Errorf(http.StatusBadRequest, "invalid app name '%s': %s", name, err)
	}
	return id, nil
}

func GetAppLogs(server *Server) *rpc.Method[AppInput, process.LogFileResult] {
	return &rpc.Method[AppInput, process.LogFileResult]{
		Name: "GetAppLogs",
		Run: func(req rpc.Request[AppInput]) (process.LogFileResult, *rpc.HttpError) {
			id, httpErr := server.processIdFor(req.Data.Name)
			if httpErr != nil {
				return process.LogFileResult{}, httpErr
			}

			logs, err := server.Launcher.Manager.GetLogFile(id)
			if errors.Is(err, process.ErrProcessNotFound) {
				return logs, rpc.Errorf(http.StatusNotFound, "app '%s' has not been started", req.Data.Name)
			}
			if err != nil {
				return logs, rpc.Errorf(http.StatusInternalServerError, "failed to read logs of '%s': %s", req.Data.Name, err)
			}

			return logs, nil
		},
	}
}

// TailLogs sends every line the app writes from now on, until it exits.
func TailLogs(server *Server) *rpc.Stream[AppInput, string] {
	return &rpc.Stream[AppInput, string]{
		Name: "TailLogs",
		Run: func(req *rpc.StreamRequest[AppInput, string]) error {
			input, err := req.ParseInput()
			if err != nil {
				return err
			}

			id, httpErr := server.processIdFor(input.Name)
			if httpErr != nil {
				return httpErr
			}

			sub, err := server.Launcher.Manager.SubscribeLogs(id)
			if err != nil {
				return fmt.Errorf("failed to follow logs of '%s': %w", input.Name, err)
			}
			defer sub.Unsubscribe()

			for {
				select {
				case line, ok := <-sub.Out:
					if !ok {
						return nil
					}
					req.Send(line)

				case <-req.Context.Done():
					return nil
				}
			}
		},
	}
}
