package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/qrun/internal/backend"
	"github.com/livinlefevreloca/qrun/internal/db"
	"github.com/livinlefevreloca/qrun/internal/executor"
	"github.com/livinlefevreloca/qrun/internal/runlog"
	"github.com/livinlefevreloca/qrun/internal/runtime"
	"github.com/livinlefevreloca/qrun/internal/stats"
	"github.com/livinlefevreloca/qrun/internal/sweep"
	"github.com/livinlefevreloca/qrun/internal/table"
	"github.com/livinlefevreloca/qrun/tools/migrator"
)

func newCollectCmd(a *app) *cobra.Command {
	var sweeps string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run the experiment sweeps on the remote backend",
		Long: "Submits one job per experiment point, appends every job to the run log " +
			"and writes the flat sweep tables. A submission failure stops the session " +
			"after writing the rows collected so far.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds, err := parseSweeps(sweeps)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.collect(ctx, kinds)
		},
	}

	cmd.Flags().StringVar(&sweeps, "sweep", "all", "Sweeps to run: timeseries, distance, sdpairs or all (comma separated)")
	return cmd
}

func parseSweeps(s string) ([]table.Kind, error) {
	if strings.TrimSpace(s) == "all" {
		return table.Kinds, nil
	}
	var kinds []table.Kind
	seen := make(map[table.Kind]bool)
	for _, part := range strings.Split(s, ",") {
		k, err := table.ParseKind(part)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// openIndex opens the sqlite run index, or returns nil when it is disabled.
func (a *app) openIndex() (*db.DB, error) {
	if !a.cfg.Database.Enabled {
		return nil, nil
	}

	dsn := a.cfg.Database.DSN
	if !strings.Contains(dsn, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(strings.TrimPrefix(dsn, "file:")), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	a.logger.Info("connecting to database", "driver", a.cfg.Database.Driver, "dsn", dsn)
	database, err := db.OpenWithConfig(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	version, err := migrator.GetCurrentVersion(database.DB)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	a.logger.Info("database schema ready", "version", version)
	return database, nil
}

func (a *app) collect(ctx context.Context, kinds []table.Kind) error {
	cfg := a.cfg
	logger := a.logger

	be, err := backend.Load(cfg.Data.BackendPath())
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	logger = logger.With("session_id", sessionID)
	logger.Info("starting collection",
		"backend", be.Name,
		"sweeps", kinds,
		"shots", cfg.Execution.Shots,
		"poll_interval", cfg.Execution.PollInterval,
		"timeout", cfg.Execution.Timeout)

	jsonl, err := runlog.OpenJSONL(cfg.Data.RunLogPath())
	if err != nil {
		return err
	}
	defer jsonl.Close()

	database, err := a.openIndex()
	if err != nil {
		return err
	}

	var secondary []runlog.Logger
	var statsWriter stats.DatabaseWriter
	if database != nil {
		defer database.Close()
		secondary = append(secondary, runlog.NewIndexLogger(database))
		statsWriter = stats.NewDBAdapter(database)
	}
	sink := runlog.NewFanout(jsonl, logger, secondary...)

	collector := stats.NewCollector(cfg.Stats, statsWriter, sessionID, logger)
	defer func() {
		if err := collector.Stop(); err != nil {
			logger.Error("failed to write session stats", "error", err)
		}
	}()

	client, err := runtime.NewClient(cfg.Runtime, logger)
	if err != nil {
		return err
	}

	engine := executor.NewEngine(client, sink, logger,
		executor.WithSessionID(sessionID),
		executor.WithObserver(collector))
	orch := sweep.NewOrchestrator(engine, be, cfg.Execution, cfg.Sweep, logger)
	logger.Info("seed base resolved", "seed_base", orch.SeedBase())

	files := cfg.Data.Files()
	for _, kind := range kinds {
		rows, runErr := orch.Run(ctx, kind)

		// Partial tables are still written so completed points are not lost.
		if err := table.WriteRawFile(files.Raw(kind), kind, rows); err != nil {
			return errors.Join(runErr, fmt.Errorf("write %s table: %w", kind, err))
		}
		logger.Info("flat table written", "sweep", string(kind), "path", files.Raw(kind), "rows", len(rows))

		if runErr != nil {
			return runErr
		}
	}

	logger.Info("collection finished", "run_log", jsonl.Path())
	return nil
}
