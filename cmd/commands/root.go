package commands

import (
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/yaxingson/mini-agent/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "miniagent",
		Usage: "Run dependency-graph task plans on a bounded worker pool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file merged over the defaults",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text or json",
				Value: "text",
			},
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewHistoryCommand(),
			NewToolsCommand(),
			NewServeCommand(),
			NewWorkspaceCommand(),
		},
	}
}

// setupLogger installs the process-wide logger from the global flags.
// out is normally os.Stderr; the run command passes io.Discard while the
// TUI owns the terminal.
func setupLogger(cmd *cli.Command, out io.Writer) {
	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cmd.String("log-format") == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// loadConfig resolves the effective config: an explicit --config file merged
// over the defaults, or the usual global-then-project chain.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if path := cmd.String("config"); path != "" {
		return config.Load("", path)
	}
	return config.LoadDefault()
}
