package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/yaxingson/mini-agent/internal/config"
	"github.com/yaxingson/mini-agent/internal/events"
	"github.com/yaxingson/mini-agent/internal/executor"
	"github.com/yaxingson/mini-agent/internal/persistence"
	"github.com/yaxingson/mini-agent/internal/scheduler"
	"github.com/yaxingson/mini-agent/internal/tool"
	"github.com/yaxingson/mini-agent/internal/tui"
	"github.com/yaxingson/mini-agent/internal/workspace"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a task plan",
		ArgsUsage: "<plan.json>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Worker pool size (overrides config)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-task timeout (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show the live terminal view",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record this run in the history store",
			},
			&cli.StringFlag{
				Name:  "workspace",
				Usage: "Workspace root for the file handlers (overrides config)",
			},
		},
		Action: runRun,
	}
}

func runRun(ctx context.Context, cmd *cli.Command) error {
	useTUI := cmd.Bool("tui")
	if useTUI {
		// The alt screen owns the terminal; keep stderr quiet.
		setupLogger(cmd, io.Discard)
	} else {
		setupLogger(cmd, os.Stderr)
	}

	planPath := cmd.Args().First()
	if planPath == "" {
		return fmt.Errorf("usage: miniagent run <plan.json>")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("workers") {
		cfg.Executor.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("timeout") {
		cfg.Executor.TaskTimeout = config.Duration(cmd.Duration("timeout"))
	}
	if cmd.IsSet("workspace") {
		cfg.Workspace.Root = cmd.String("workspace")
	}

	specs, err := scheduler.LoadPlan(planPath)
	if err != nil {
		return err
	}
	graph, err := scheduler.BuildGraph(specs)
	if err != nil {
		return err
	}

	// The run ID is assigned up front so the workspace directory and the
	// history records share it with the report.
	runID := executor.NewRunID()

	manager, err := workspace.NewManager(cfg.Workspace.Root)
	if err != nil {
		return fmt.Errorf("init workspace: %w", err)
	}
	ws, err := manager.Create(runID)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	registry, err := tool.DefaultRegistry(tool.Options{
		CalculatorLatency: cfg.Tools.CalculatorLatency.Duration(),
		SearchLatency:     cfg.Tools.SearchLatency.Duration(),
		FileLatency:       cfg.Tools.FileLatency.Duration(),
		Knowledge:         cfg.Tools.Knowledge,
		WorkspaceDir:      ws.Path,
		Resilient:         cfg.Tools.Resilient,
	})
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	bus := events.NewBus()
	defer bus.Close()

	// History writes should survive Ctrl+C.
	persistCtx := context.WithoutCancel(ctx)

	var store persistence.Store
	var collectorDone <-chan struct{}
	if cfg.History.Enabled && !cmd.Bool("no-history") {
		path, err := cfg.HistoryPath()
		if err != nil {
			return err
		}
		store, err = persistence.NewSQLiteStore(persistCtx, path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
		collectorDone = collectEvents(persistCtx, bus, store, runID)
	}

	exec := executor.New(graph, registry, executor.Config{
		RunID:       runID,
		Workers:     cfg.Executor.Workers,
		TaskTimeout: cfg.Executor.TaskTimeout.Duration(),
		Bus:         bus,
	})

	var report *executor.Report
	var runErr error

	if useTUI {
		runCtx, cancelRun := context.WithCancel(ctx)
		defer cancelRun()

		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			report, runErr = exec.Run(runCtx)
			// Closing the bus ends the TUI's event subscription.
			bus.Close()
		}()

		program := tea.NewProgram(tui.New(bus), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			cancelRun()
			<-runDone
			return fmt.Errorf("tui: %w", err)
		}
		// Quitting the view before the run finishes cancels the run.
		cancelRun()
		<-runDone
	} else {
		logDone := logEvents(bus)
		report, runErr = exec.Run(ctx)
		bus.Close()
		<-logDone
	}

	if collectorDone != nil {
		<-collectorDone
	}

	if report != nil {
		if store != nil {
			if err := store.SaveRun(persistCtx, report); err != nil {
				slog.Warn("save run history", "run_id", runID, "error", err)
			}
		}
		fmt.Println(report.Summary())
	}

	if runErr != nil {
		return runErr
	}
	if report != nil && report.Failed > 0 {
		return fmt.Errorf("run %s finished with %d failed task(s)", report.RunID, report.Failed)
	}
	return nil
}

// logEvents mirrors bus traffic to the logger until the bus closes. Task
// failures are already logged by the executor, so they are skipped here.
func logEvents(bus *events.Bus) <-chan struct{} {
	sub := bus.SubscribeAll(256)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range sub {
			switch e := ev.(type) {
			case events.TaskStartedEvent:
				slog.Info("task started", "task", e.ID, "operation", e.Operation)
			case events.TaskCompletedEvent:
				slog.Info("task completed", "task", e.ID, "duration", e.Duration)
			case events.RunProgressEvent:
				slog.Debug("run progress",
					"completed", e.Completed,
					"running", e.Running,
					"failed", e.Failed,
					"pending", e.Pending)
			case events.RunFinishedEvent:
				slog.Info("run finished",
					"run_id", e.RunID,
					"completed", e.Completed,
					"failed", e.Failed,
					"blocked", e.Blocked)
			}
		}
	}()

	return done
}

// collectEvents persists every bus event under the given run ID. The returned
// channel closes once the subscription drains after the bus closes.
func collectEvents(ctx context.Context, bus *events.Bus, store persistence.Store, runID string) <-chan struct{} {
	sub := bus.SubscribeAll(256)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range sub {
			if err := store.SaveEvent(ctx, runID, ev.TaskID(), ev.EventType(), eventDetail(ev)); err != nil {
				slog.Warn("save event", "run_id", runID, "error", err)
			}
		}
	}()

	return done
}

// eventDetail renders the storable portion of an event.
func eventDetail(ev events.Event) string {
	switch e := ev.(type) {
	case events.TaskStartedEvent:
		return e.Operation
	case events.TaskCompletedEvent:
		return e.Result
	case events.TaskFailedEvent:
		return e.Err.Error()
	case events.RunProgressEvent:
		return fmt.Sprintf("%d/%d completed, %d running, %d failed, %d pending",
			e.Completed, e.Total, e.Running, e.Failed, e.Pending)
	case events.RunFinishedEvent:
		return fmt.Sprintf("%d completed, %d failed, %d blocked in %.2fs",
			e.Completed, e.Failed, e.Blocked, e.Duration.Seconds())
	default:
		return ""
	}
}
