package server

import (
	"errors"
	"net/http"

	"ecosystem.dev/internal/ecosystem"
	"ecosystem.dev/internal/launcher"
	"ecosystem.dev/internal/rpc"
)

type GetAppsResponse struct {
	ConfigPath string               `json:"configPath"`
	Apps       []launcher.AppStatus `json:"apps"`
}

func GetApps(server *Server) *rpc.Method[struct{}, GetAppsResponse] {
	return &rpc.Method[struct{}, GetAppsResponse]{
		Name:             "GetApps",
		SkipInputParsing: true,
		Run: func(_ rpc.Request[struct{}]) (GetAppsResponse, *rpc.HttpError) {
			file, httpErr := server.loadFile()
			if httpErr != nil {
				return GetAppsResponse{}, httpErr
			}

			return GetAppsResponse{
				ConfigPath: file.Path,
				Apps:       server.Launcher.Status(file),
			}, nil
		},
	}
}

type AppsInput struct {
	// Names selects apps from the ecosystem file. Empty means every app.
	Names []string `json:"names"`
}

func selectError(err error) *rpc.HttpError {
	if errors.Is(err, ecosystem.ErrAppNotFound) {
		return rpc.Errorf(http.StatusNotFound, "%s", err)
	}
	return rpc.Errorf(http.StatusInternalServerError, "%s", err)
}

type StartAppsResponse struct {
	Started []launcher.Result `json:"started"`
	Errors  []string          `json:"errors,omitempty"`
}

func StartApps(server *Server) *rpc.Method[AppsInput, StartAppsResponse] {
	return &rpc.Method[AppsInput, StartAppsResponse]{
		Name: "StartApps",
		Run: func(req rpc.Request[AppsInput]) (StartAppsResponse, *rpc.HttpError) {
			file, httpErr := server.loadFile()
			if httpErr != nil {
				return StartAppsResponse{}, httpErr
			}

			if _, err := file.Select(req.Data.Names...); err != nil {
				return StartAppsResponse{}, selectError(err)
			}

			results, err := server.Launcher.Launch(req.Context, file, req.Data.Names...)
			response := StartAppsResponse{Started: results}
			for _, spawnErr := range spawnErrors(err) {
				response.Errors = append(response.Errors, spawnErr.Error())
			}

			if len(results) == 0 && len(response.Errors) > 0 {
				return response, rpc.Errorf(http.StatusInternalServerError, "no app could be started: %s", err)
			}

			return response, nil
		},
	}
}

// spawnErrors flattens the error returned by Launcher.Launch.
func spawnErrors(err error) []error {
	if err == nil {
		return nil
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

type StopAppsResponse struct {
	Stopped []string `json:"stopped"`
}

func StopApps(server *Server) *rpc.Method[AppsInput, StopAppsResponse] {
	return &rpc.Method[AppsInput, StopAppsResponse]{
		Name: "StopApps",
		Run: func(req rpc.Request[AppsInput]) (StopAppsResponse, *rpc.HttpError) {
			file, httpErr := server.loadFile()
			if httpErr != nil {
				return StopAppsResponse{}, httpErr
			}

			stopped, err := server.Launcher.Stop(req.Context, file, req.Data.Names...)
			if errors.Is(err, ecosystem.ErrAppNotFound) {
				return StopAppsResponse{}, selectError(err)
			}
			if err != nil {
				return StopAppsResponse{Stopped: stopped}, rpc.Errorf(http.StatusInternalServerError, "%s", err)
			}

			if stopped == nil {
				stopped = []string{}
			}
			return StopAppsResponse{Stopped: stopped}, nil
		},
	}
}
