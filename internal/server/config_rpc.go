package server

import (
	"runtime"

	"ecosystem.dev/internal/config"
	"ecosystem.dev/internal/rpc"
)

type GetVersionResponse struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

var GetVersion = rpc.Method[struct{}, GetVersionResponse]{
	Name:             "GetVersion",
	SkipInputParsing: true,
	Run: func(_ rpc.Request[struct{}]) (GetVersionResponse, *rpc.HttpError) {
		return GetVersionResponse{
			Version: config.GetVersion(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
		}, nil
	},
}
