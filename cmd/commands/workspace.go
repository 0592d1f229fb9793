package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/yaxingson/mini-agent/internal/workspace"
)

// NewWorkspaceCommand returns the workspace subcommand.
func NewWorkspaceCommand() *cli.Command {
	return &cli.Command{
		Name:  "workspace",
		Usage: "Manage per-run scratch directories",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List run workspaces",
				Action: runWorkspaceList,
			},
			{
				Name:  "prune",
				Usage: "Remove workspaces older than --max-age",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "max-age",
						Usage: "Age threshold for removal",
						Value: 24 * time.Hour,
					},
				},
				Action: runWorkspacePrune,
			},
		},
		DefaultCommand: "list",
	}
}

// openWorkspaceManager resolves the configured workspace root.
func openWorkspaceManager(cmd *cli.Command) (*workspace.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return workspace.NewManager(cfg.Workspace.Root)
}

func runWorkspaceList(_ context.Context, cmd *cli.Command) error {
	manager, err := openWorkspaceManager(cmd)
	if err != nil {
		return err
	}

	infos, err := manager.List()
	if err != nil {
		return fmt.Errorf("list workspaces: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No workspaces found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCREATED\tPATH")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			info.RunID,
			info.CreatedAt.Format("2006-01-02 15:04:05"),
			info.Path,
		)
	}
	return w.Flush()
}

func runWorkspacePrune(_ context.Context, cmd *cli.Command) error {
	manager, err := openWorkspaceManager(cmd)
	if err != nil {
		return err
	}

	n, err := manager.Prune(cmd.Duration("max-age"))
	if err != nil {
		return fmt.Errorf("prune workspaces: %w", err)
	}

	fmt.Printf("Removed %d workspace(s).\n", n)
	return nil
}
