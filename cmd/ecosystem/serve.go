package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ecosystem.dev/internal/process"
	"ecosystem.dev/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

type ServeCommand struct {
	port        int
	bindAddress string
}

func (cmd *ServeCommand) Name() string {
	return "serve"
}

func (cmd *ServeCommand) Description() string {
	return "Run the HTTP control server for the ecosystem file"
}

func (cmd *ServeCommand) Parse(flagSet *pflag.FlagSet, args []string) error {
	flagSet.IntVar(&cmd.port, "port", 9010, "The port to listen on")
	flagSet.StringVar(&cmd.bindAddress, "bind", "127.0.0.1", "The address to bind to")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if cmd.port < 1 || cmd.port > 65535 {
		return fmt.Errorf("invalid port number: %d", cmd.port)
	}

	return nil
}

func (cmd *ServeCommand) Run() error {
	file, err := loadEcosystem()
	if err != nil {
		return err
	}

	l, err := defaultLauncher()
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := server.Server{
		BindAddress: cmd.bindAddress,
		Port:        cmd.port,
		ConfigPath:  file.Path,
		Launcher:    l,
		Topics:      &process.Topics,
	}
	return app.Run(ctx)
}
