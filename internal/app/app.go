package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"mongocsvexport/internal/config"
	mcpserver "mongocsvexport/internal/mcp"
	"mongocsvexport/internal/service"
	"mongocsvexport/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

// shutdownGrace bounds how long the daemon waits for running jobs on exit.
const shutdownGrace = 30 * time.Second

// Run is the process entry point. It parses args and dispatches to the
// selected mode until it completes or ctx is cancelled.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	opts, err := ParseArgs(args, stderr, getenv)
	if err != nil {
		if errors.Is(err, errUsage) {
			printUsage(stderr)
		}
		return err
	}

	log.SetOutput(stderr)
	if opts.Mode == ModeExport && !opts.Verbose {
		log.SetOutput(io.Discard)
	}

	switch opts.Mode {
	case ModeHelp:
		printUsage(stdout)
		return nil
	case ModeVersion:
		fmt.Fprintf(stdout, "mongocsvexport version %s\n", Version)
		return nil
	case ModeExport:
		return runExport(ctx, opts, stdout, stderr)
	case ModeRunJob:
		return runNamedJob(ctx, opts, stdout, getenv)
	case ModeJobs:
		return serveJobs(ctx, opts, stdout, getenv)
	case ModeMCP:
		return serveMCP(ctx, opts, getenv)
	default:
		return fmt.Errorf("unknown mode %d", opts.Mode)
	}
}

// openHistory opens the run log store, or returns nil stores when path is empty.
func openHistory(path string) (*storage.DB, *storage.RunStore, error) {
	if path == "" {
		return nil, nil, nil
	}
	db, err := storage.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return db, storage.NewRunStore(db), nil
}

func runExport(ctx context.Context, opts *Options, stdout, stderr io.Writer) error {
	db, runs, err := openHistory(opts.History)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	svc := service.NewExportService(nil, runs, stdout)
	runOpts := service.RunOptions{}
	if opts.Progress {
		runOpts.Progress = stderr
	}
	_, err = svc.Run(ctx, &opts.Job, runOpts)
	return err
}

// loadJobs reads the jobs file and opens the history it names, unless
// overridden on the command line.
func loadJobs(opts *Options, getenv func(string) string) (*config.Config, *storage.DB, *storage.RunStore, error) {
	cfg := config.Defaults()
	if opts.JobsFile != "" {
		var err error
		cfg, err = config.Load(opts.JobsFile, getenv)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading jobs: %w", err)
		}
	}
	history := cfg.History
	if opts.History != "" {
		history = opts.History
	}
	db, runs, err := openHistory(history)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, runs, nil
}

func runNamedJob(ctx context.Context, opts *Options, stdout io.Writer, getenv func(string) string) error {
	cfg, db, runs, err := loadJobs(opts, getenv)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	svc := service.NewExportService(cfg, runs, stdout)
	_, err = svc.RunJob(ctx, opts.RunJob)
	return err
}

func serveJobs(ctx context.Context, opts *Options, stdout io.Writer, getenv func(string) string) error {
	cfg, db, runs, err := loadJobs(opts, getenv)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	svc := service.NewExportService(cfg, runs, stdout)
	scheduled, watched := svc.RestartWatchers(ctx)
	if scheduled+watched == 0 {
		svc.Stop()
		return errors.New("no scheduled or file_watch jobs to run")
	}
	log.Printf("[JOBS] %d scheduled, %d watched; waiting for triggers", scheduled, watched)

	<-ctx.Done()
	log.Println("[JOBS] shutting down")
	svc.Stop()

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	svc.WaitRunning(waitCtx)
	return nil
}

func serveMCP(ctx context.Context, opts *Options, getenv func(string) string) error {
	cfg, db, runs, err := loadJobs(opts, getenv)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// stdout carries the MCP protocol, so exports never write there.
	svc := service.NewExportService(cfg, runs, io.Discard)
	srv := mcpserver.New(mcpserver.Deps{Exports: svc, Version: Version})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		svc.WaitRunning(waitCtx)
		return nil
	}
}
