package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/yaxingson/mini-agent/internal/persistence"
)

// NewHistoryCommand returns the history subcommand.
func NewHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 20,
					},
				},
				Action: runHistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one run in full",
				ArgsUsage: "<run-id>",
				Action:    runHistoryShow,
			},
			{
				Name:      "events",
				Usage:     "Show the event log of a run",
				ArgsUsage: "<run-id>",
				Action:    runHistoryEvents,
			},
			{
				Name:      "delete",
				Usage:     "Delete a recorded run",
				ArgsUsage: "<run-id>",
				Action:    runHistoryDelete,
			},
		},
		DefaultCommand: "list",
	}
}

// openHistoryStore opens the configured history database.
func openHistoryStore(ctx context.Context, cmd *cli.Command) (persistence.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return persistence.NewSQLiteStore(ctx, path)
}

func runHistoryList(ctx context.Context, cmd *cli.Command) error {
	store, err := openHistoryStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tTASKS\tCOMPLETED\tFAILED\tBLOCKED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%d\t%d\t%d\t%d\n",
			r.RunID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Duration.Seconds(),
			r.Total,
			r.Completed,
			r.Failed,
			r.Blocked,
		)
	}
	return w.Flush()
}

func runHistoryShow(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.Args().First()
	if runID == "" {
		return fmt.Errorf("usage: miniagent history show <run-id>")
	}

	store, err := openHistoryStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	fmt.Printf("Run:      %s\n", run.RunID)
	fmt.Printf("Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %.2fs\n", run.Duration.Seconds())
	fmt.Printf("Tasks:    %d completed, %d failed, %d blocked, %d pending\n",
		run.Completed, run.Failed, run.Blocked, run.Pending)

	fmt.Println("\nTasks:")
	for _, task := range run.Tasks {
		line := fmt.Sprintf("  %s %s: %s[%s]", recordGlyph(task), task.TaskID, task.Operation, task.RawInput)
		if task.Duration > 0 {
			line += fmt.Sprintf(" (%.2fs)", task.Duration.Seconds())
		}
		fmt.Println(line)
		if len(task.DependsOn) > 0 {
			fmt.Printf("      depends on: %s\n", strings.Join(task.DependsOn, ", "))
		}
		if task.Result != "" {
			fmt.Printf("      result: %s\n", task.Result)
		}
		if task.Error != "" {
			fmt.Printf("      error: %s\n", task.Error)
		}
		if task.BlockedBy != "" {
			fmt.Printf("      blocked: %s\n", task.BlockedBy)
		}
	}

	return nil
}

func runHistoryEvents(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.Args().First()
	if runID == "" {
		return fmt.Errorf("usage: miniagent history events <run-id>")
	}

	store, err := openHistoryStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.GetEvents(ctx, runID)
	if err != nil {
		return fmt.Errorf("get events: %w", err)
	}

	if len(recs) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTASK\tEVENT\tDETAIL")
	for _, rec := range recs {
		taskID := rec.TaskID
		if taskID == "" {
			taskID = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.Timestamp.Format("15:04:05.000"),
			taskID,
			rec.EventType,
			rec.Detail,
		)
	}
	return w.Flush()
}

func runHistoryDelete(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.Args().First()
	if runID == "" {
		return fmt.Errorf("usage: miniagent history delete <run-id>")
	}

	store, err := openHistoryStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteRun(ctx, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}

	fmt.Printf("Run %s deleted.\n", runID)
	return nil
}

// recordGlyph maps a persisted task state to the summary glyph set.
func recordGlyph(task persistence.TaskRecord) string {
	switch task.State {
	case "completed":
		return "✓"
	case "failed":
		return "✗"
	case "running":
		return "⟳"
	default:
		return "○"
	}
}
