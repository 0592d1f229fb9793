package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/yaxingson/mini-agent/internal/tool"
)

// NewToolsCommand returns the tools subcommand.
func NewToolsCommand() *cli.Command {
	return &cli.Command{
		Name:   "tools",
		Usage:  "List the registered operations",
		Action: runTools,
	}
}

func runTools(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Latencies are irrelevant for listing; the workspace root only decides
	// whether the file handlers appear.
	registry, err := tool.DefaultRegistry(tool.Options{
		Knowledge:    cfg.Tools.Knowledge,
		WorkspaceDir: cfg.Workspace.Root,
		Resilient:    cfg.Tools.Resilient,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tDESCRIPTION")
	for _, h := range registry.Handlers() {
		fmt.Fprintf(w, "%s\t%s\n", h.Name(), h.Description())
	}
	return w.Flush()
}
