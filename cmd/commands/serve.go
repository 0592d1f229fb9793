package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/yaxingson/mini-agent/internal/api"
	"github.com/yaxingson/mini-agent/internal/persistence"
	"github.com/yaxingson/mini-agent/internal/tool"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve run history over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	setupLogger(cmd, os.Stderr)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("host") {
		cfg.API.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.API.Port = cmd.Int("port")
	}

	path, err := cfg.HistoryPath()
	if err != nil {
		return err
	}
	store, err := persistence.NewSQLiteStore(ctx, path)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	registry, err := tool.DefaultRegistry(tool.Options{
		Knowledge:    cfg.Tools.Knowledge,
		WorkspaceDir: cfg.Workspace.Root,
		Resilient:    cfg.Tools.Resilient,
	})
	if err != nil {
		return err
	}

	server := api.NewServer(store, registry, cfg.API.Host, cfg.API.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
