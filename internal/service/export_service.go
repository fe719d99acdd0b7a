package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"time"

	"mongocsvexport/internal/config"
	"mongocsvexport/internal/dbclient"
	"mongocsvexport/internal/etl"
	_ "mongocsvexport/internal/etl/sources"
	"mongocsvexport/internal/output"
	"mongocsvexport/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Export Service: runs named export jobs and keeps their history
// ─────────────────────────────────────────────────────────────

// ExportService runs exports, records run logs and drives scheduled and
// file-triggered jobs.
type ExportService struct {
	cfg         *config.Config
	runs        *storage.RunStore // nil disables history
	stdout      io.Writer
	runningJobs runGuard

	triggers
}

// NewExportService creates an ExportService. runs may be nil.
func NewExportService(cfg *config.Config, runs *storage.RunStore, stdout io.Writer) *ExportService {
	if cfg == nil {
		cfg = config.Defaults()
	}
	return &ExportService{cfg: cfg, runs: runs, stdout: stdout}
}

// RunOptions tunes a single run.
type RunOptions struct {
	Progress io.Writer // progress line destination; nil disables progress
}

// JobInfo summarizes a configured job.
type JobInfo struct {
	Name       string             `json:"name"`
	SourceType string             `json:"sourceType"`
	Fields     []string           `json:"fields"`
	Output     string             `json:"output"`
	Trigger    config.Trigger     `json:"trigger"`
	Running    bool               `json:"running"`
	LastRun    *storage.JobStatus `json:"lastRun,omitempty"`
}

// ListJobs returns the configured jobs in file order.
func (s *ExportService) ListJobs() []JobInfo {
	infos := make([]JobInfo, 0, len(s.cfg.Jobs))
	for _, j := range s.cfg.Jobs {
		info := JobInfo{
			Name:       j.Name,
			SourceType: j.Source.Type,
			Fields:     j.Fields,
			Output:     j.Output,
			Trigger:    j.Trigger,
		}
		if j.Postgres != nil {
			info.Output = "postgres:" + j.Postgres.Table
		}
		_, info.Running = s.runningJobs.StartedAt(j.Name)
		if s.runs != nil {
			if st, err := s.runs.GetJobStatus(j.Name); err == nil {
				info.LastRun = st
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// ListSources returns the available source descriptors.
func (s *ExportService) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

// ListRunLogs returns recent runs, newest first. An empty name lists all jobs.
func (s *ExportService) ListRunLogs(name string, limit int) ([]etl.RunLog, error) {
	if s.runs == nil {
		return nil, errors.New("run history is not enabled")
	}
	return s.runs.ListRunLogs(name, limit)
}

// ── Run ────────────────────────────────────────────────────

// RunJob runs the configured job named name.
func (s *ExportService) RunJob(ctx context.Context, name string) (*etl.ExportResult, error) {
	job, ok := s.cfg.Find(name)
	if !ok {
		return nil, fmt.Errorf("unknown job: %q", name)
	}
	return s.Run(ctx, job, RunOptions{})
}

// Run executes job synchronously. Runs of the same job name never overlap.
// The outcome is written to the run history when enabled.
func (s *ExportService) Run(ctx context.Context, job *config.Job, opts RunOptions) (*etl.ExportResult, error) {
	if !s.runningJobs.TryLock(job.Name) {
		return nil, fmt.Errorf("job %s is already running", job.Name)
	}
	defer s.runningJobs.Unlock(job.Name)

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	// A zero timeout leaves the run bounded only by ctx.
	if job.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	log.Printf("[EXPORT] job %s: starting (%s source)", job.Name, job.Source.Type)
	start := time.Now()
	result, runErr := s.export(runCtx, job, opts)
	if result == nil {
		result = &etl.ExportResult{Status: "error", Duration: time.Since(start)}
		if runErr != nil {
			result.Error = runErr.Error()
		}
	}

	if runErr != nil {
		log.Printf("[EXPORT] job %s: failed after %d records: %v", job.Name, result.RecordsRead, runErr)
	} else {
		log.Printf("[EXPORT] job %s: %d records, %d rows in %s",
			job.Name, result.RecordsRead, result.RowsWritten, result.Duration.Round(time.Millisecond))
	}
	s.recordRun(job.Name, start, result)
	return result, runErr
}

func (s *ExportService) recordRun(name string, start time.Time, result *etl.ExportResult) {
	if s.runs == nil {
		return
	}
	runLog := &etl.RunLog{
		Job:         name,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Status:      result.Status,
		RecordsRead: result.RecordsRead,
		RowsWritten: result.RowsWritten,
		Error:       result.Error,
	}
	if err := s.runs.CreateRunLog(runLog); err != nil {
		log.Printf("[EXPORT] job %s: save run log: %v", name, err)
	}
	if err := s.runs.UpdateJobStatus(name, result.Status, result.Error); err != nil {
		log.Printf("[EXPORT] job %s: save status: %v", name, err)
	}
}

// export wires source, sink and engine for one run.
func (s *ExportService) export(ctx context.Context, job *config.Job, opts RunOptions) (*etl.ExportResult, error) {
	table, err := etl.BuildPathTable(job.Fields)
	if err != nil {
		return nil, err
	}

	cur, err := s.openCursor(ctx, job)
	if err != nil {
		return nil, err
	}

	var progress *etl.Progress
	if opts.Progress != nil {
		progress = etl.NewProgress(opts.Progress, total(ctx, cur, job.Limit))
	}

	sink, closeOutput, err := s.openSink(ctx, job)
	if err != nil {
		cur.Close(ctx)
		return nil, err
	}

	engine := &etl.Engine{Sink: sink}
	result, runErr := engine.Run(ctx, cur, table, etl.RunOptions{
		Limit:     job.Limit,
		NullValue: job.NullValue,
		Progress:  progress,
	})
	if err := closeOutput(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", err)
		result.Status = "error"
		result.Error = runErr.Error()
	}
	return result, runErr
}

func (s *ExportService) openCursor(ctx context.Context, job *config.Job) (etl.Cursor, error) {
	cfg := etl.SourceConfig(maps.Clone(job.Source.Config))
	if cfg == nil {
		cfg = etl.SourceConfig{}
	}
	if job.Limit > 0 {
		cfg["limit"] = job.Limit
	}
	cur, err := etl.OpenSource(ctx, job.Source.Type, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", job.Source.Type, err)
	}
	return cur, nil
}

// openSink returns the job's sink and a function releasing what backs it.
func (s *ExportService) openSink(ctx context.Context, job *config.Job) (etl.Sink, func() error, error) {
	if pg := job.Postgres; pg != nil {
		db, err := dbclient.OpenPostgresDSN(ctx, pg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return etl.NewPostgresSink(db, pg.Table, pg.Columns, job.NullValue), db.Close, nil
	}

	w, err := output.Open(job.Output, s.stdout)
	if err != nil {
		return nil, nil, err
	}
	sink, err := etl.NewCSVSink(w, job.CSVOptions())
	if err != nil {
		w.Close()
		return nil, nil, err
	}
	return sink, w.Close, nil
}

// total is the expected number of records for progress display, 0 if unknown.
func total(ctx context.Context, cur etl.Cursor, limit int) int64 {
	var n int64
	if c, ok := cur.(etl.Counter); ok {
		count, err := c.Count(ctx)
		if err != nil {
			log.Printf("[EXPORT] count: %v", err)
		}
		n = count
	}
	if limit > 0 && (n == 0 || n > int64(limit)) {
		n = int64(limit)
	}
	return n
}

// ── Preview ────────────────────────────────────────────────

// PreviewResult is the response of Preview.
type PreviewResult struct {
	Columns []string  `json:"columns"`
	Rows    []etl.Row `json:"rows"`
}

// Preview returns up to maxRows flattened rows of job without writing output.
func (s *ExportService) Preview(ctx context.Context, job *config.Job, maxRows int) (*PreviewResult, error) {
	if maxRows <= 0 {
		maxRows = 10
	}
	table, err := etl.BuildPathTable(job.Fields)
	if err != nil {
		return nil, err
	}

	previewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cur, err := s.openCursor(previewCtx, job)
	if err != nil {
		return nil, err
	}
	rows, err := etl.Preview(previewCtx, cur, table, etl.RunOptions{Limit: job.Limit, NullValue: job.NullValue}, maxRows)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Columns: table.Names(), Rows: rows}, nil
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ExportService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ExportService) Stop() {
	s.stopWatchers()
}
