package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"ecosystem.dev/internal/config"
	"ecosystem.dev/internal/ecosystem"
	"ecosystem.dev/internal/health"
	"ecosystem.dev/internal/launcher"
	"ecosystem.dev/internal/log"
	"ecosystem.dev/internal/pubsub"
	"ecosystem.dev/internal/rpc"
	"github.com/gin-gonic/gin"
)

var logger log.Logger = log.New("server")

type Server struct {
	BindAddress string
	Port        int

	// ConfigPath is the ecosystem file served. It is reloaded on every request,
	// so edits are picked up without restarting the server.
	ConfigPath string

	Launcher *launcher.Launcher
	Topics   *pubsub.Registry

	router *gin.Engine
}

func (server *Server) loadFile() (ecosystem.File, *rpc.HttpError) {
	file, err := ecosystem.Load(server.ConfigPath)
	if err != nil {
		var parseErr *ecosystem.ParseError
		if errors.As(err, &parseErr) {
			return file, rpc.Errorf(http.StatusUnprocessableEntity, "%s", err)
		}
		return file, rpc.Errorf(http.StatusInternalServerError, "failed to load ecosystem file: %s", err)
	}
	return file, nil
}

func (server *Server) loadRpcMethods(group *gin.RouterGroup) {
	GetVersion.Register(group)
	ListProcesses(server).Register(group)
	GetTopics(server).Register(group)

	GetApps(server).Register(group)
	StartApps(server).Register(group)
	StopApps(server).Register(group)
	GetAppLogs(server).Register(group)
}

func (server *Server) loadStreams(ws *rpc.Websocket) error {
	streams := []interface{ Register(*rpc.Websocket) error }{
		&GetHeartbeat,
		TailLogs(server),
	}

	for _, stream := range streams {
		if err := stream.Register(ws); err != nil {
			return err
		}
	}
	return nil
}

// Handler builds the router on first use.
func (server *Server) Handler() (http.Handler, error) {
	if server.router != nil {
		return server.router, nil
	}

	if server.Topics == nil {
		server.Topics = &pubsub.Registry{}
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":      true,
			"pid":     os.Getpid(),
			"version": config.GetVersion(),
		})
	})

	server.loadRpcMethods(router.Group("/api/rpc"))

	ws := &rpc.Websocket{}
	if err := server.loadStreams(ws); err != nil {
		return nil, err
	}
	router.GET("/api/websocket", ws.Handler())

	server.router = router
	return router, nil
}

// Run serves until the context is cancelled.
func (server *Server) Run(ctx context.Context) error {
	handler, err := server.Handler()
	if err != nil {
		return err
	}

	portBinding := fmt.Sprintf("%s:%d", server.BindAddress, server.Port)
	httpServer := &http.Server{
		Addr:    portBinding,
		Handler: handler,
	}

	logger.Info("Starting ecosystem server", log.Ctx{
		"configPath": server.ConfigPath,
		"pid":        os.Getpid(),
		"address":    portBinding,
	})

	go func() {
		healthCheck := health.HttpHealthCheck{
			Method: "GET",
			Url:    fmt.Sprintf("http://%s/api/health", portBinding),
		}
		started := health.WaitFor(ctx, 100*time.Millisecond, func() bool {
			return health.CheckHttp(healthCheck)
		})
		if started {
			logger.Print(fmt.Sprintf("Started ecosystem server on http://%s", portBinding), log.Ctx{})
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Err(err, "Failed to shut down server", log.Ctx{})
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
