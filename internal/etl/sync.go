package etl

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ── Engine ─────────────────────────────────────────────────
// Orchestrates: cursor.Next → expand → assemble → sink.WriteRow.
// Single-threaded and pull-based: one record is held at a time and rows are
// written in record order, then in expansion order.

// RunOptions holds the per-run settings of the pipeline.
type RunOptions struct {
	Limit     int    // max records consumed; 0 means unlimited
	NullValue string // placeholder for null and missing fields
	Progress  *Progress
}

// ExportResult is the outcome of one export run.
type ExportResult struct {
	Status      string        `json:"status"` // "success" | "error"
	RecordsRead int           `json:"recordsRead"`
	RowsWritten int           `json:"rowsWritten"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// RunLog is a historical record of an export run.
type RunLog struct {
	ID          string    `json:"id"`
	Job         string    `json:"job"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RecordsRead int       `json:"recordsRead"`
	RowsWritten int       `json:"rowsWritten"`
	Error       string    `json:"error,omitempty"`
}

// Engine runs exports into a sink.
type Engine struct {
	Sink Sink
}

// Run drains cur into the engine's sink. It owns cur and the sink for the
// duration of the run and closes both. On failure rows already written stay
// in the output; the sink is told the run failed.
func (e *Engine) Run(ctx context.Context, cur Cursor, table *PathTable, opts RunOptions) (*ExportResult, error) {
	start := time.Now()
	result := &ExportResult{}

	fail := func(err error) (*ExportResult, error) {
		if cerr := e.Sink.Close(ctx, err); cerr != nil {
			err = errors.Join(err, cerr)
		}
		result.Status = "error"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}

	defer cur.Close(context.WithoutCancel(ctx))

	if err := e.Sink.Begin(ctx, table.Names()); err != nil {
		return fail(fmt.Errorf("begin: %w", err))
	}

	expander := NewExpander(table)
	assembler := NewAssembler(table, opts.NullValue)

	for opts.Limit <= 0 || result.RecordsRead < opts.Limit {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if !cur.Next(ctx) {
			break
		}
		result.RecordsRead++
		for _, t := range expander.Expand(cur.Record()) {
			if err := e.Sink.WriteRow(ctx, assembler.Assemble(t)); err != nil {
				return fail(fmt.Errorf("write: %w", err))
			}
			result.RowsWritten++
		}
		opts.Progress.Add(1)
	}
	if err := cur.Err(); err != nil {
		return fail(fmt.Errorf("read: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if err := e.Sink.Close(ctx, nil); err != nil {
		result.Status = "error"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}
	opts.Progress.Finish()

	result.Status = "success"
	result.Duration = time.Since(start)
	return result, nil
}

// Preview expands records from cur until maxRows rows are produced, without
// a sink. It closes cur.
func Preview(ctx context.Context, cur Cursor, table *PathTable, opts RunOptions, maxRows int) ([]Row, error) {
	defer cur.Close(context.WithoutCancel(ctx))

	expander := NewExpander(table)
	assembler := NewAssembler(table, opts.NullValue)

	var rows []Row
	read := 0
	for len(rows) < maxRows && (opts.Limit <= 0 || read < opts.Limit) {
		if !cur.Next(ctx) {
			break
		}
		read++
		for _, t := range expander.Expand(cur.Record()) {
			rows = append(rows, assembler.Assemble(t))
			if len(rows) >= maxRows {
				break
			}
		}
	}
	if err := cur.Err(); err != nil {
		return rows, fmt.Errorf("read: %w", err)
	}
	return rows, ctx.Err()
}
