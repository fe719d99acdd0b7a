package etl

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ── Postgres Sink ──────────────────────────────────────────
// Loads rows straight into a Postgres table using COPY FROM STDIN inside a
// single transaction. A failed run rolls back, so the table is untouched.

// PostgresSink implements Sink for a Postgres table.
type PostgresSink struct {
	db        *sql.DB
	table     string
	columns   []string
	nullValue string

	tx   *sql.Tx
	stmt *sql.Stmt
}

// NewPostgresSink returns a sink copying into table. When columns is empty
// the declared field names are used with "." replaced by "_". Values equal
// to nullValue are loaded as NULL. The sink does not close db.
func NewPostgresSink(db *sql.DB, table string, columns []string, nullValue string) *PostgresSink {
	return &PostgresSink{db: db, table: table, columns: columns, nullValue: nullValue}
}

// ColumnName converts a dotted field name into a column identifier.
func ColumnName(field string) string {
	return strings.ReplaceAll(strings.TrimSpace(field), PathSeparator, "_")
}

func (s *PostgresSink) Begin(ctx context.Context, names []string) error {
	if len(s.columns) == 0 {
		for _, n := range names {
			s.columns = append(s.columns, ColumnName(n))
		}
	}
	if len(s.columns) != len(names) {
		return fmt.Errorf("copy into %s: %d columns for %d fields", s.table, len(s.columns), len(names))
	}
	if len(s.columns) == 0 {
		return fmt.Errorf("copy into %s: no columns", s.table)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin copy: %w", err)
	}

	var query string
	if schema, table, ok := strings.Cut(s.table, "."); ok {
		query = pq.CopyInSchema(schema, table, s.columns...)
	} else {
		query = pq.CopyIn(s.table, s.columns...)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare copy into %s: %w", s.table, err)
	}
	s.tx, s.stmt = tx, stmt
	return nil
}

func (s *PostgresSink) WriteRow(ctx context.Context, row Row) error {
	args := make([]any, len(row))
	for i, v := range row {
		if v == s.nullValue {
			continue
		}
		args[i] = v
	}
	if _, err := s.stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("copy row: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close(ctx context.Context, cause error) error {
	if s.tx == nil {
		return nil
	}
	defer func() { s.tx, s.stmt = nil, nil }()

	if cause != nil {
		s.stmt.Close()
		return s.tx.Rollback()
	}
	// An Exec without arguments flushes the buffered COPY data.
	if _, err := s.stmt.ExecContext(ctx); err != nil {
		s.stmt.Close()
		s.tx.Rollback()
		return fmt.Errorf("finish copy into %s: %w", s.table, err)
	}
	if err := s.stmt.Close(); err != nil {
		s.tx.Rollback()
		return fmt.Errorf("close copy: %w", err)
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit copy: %w", err)
	}
	return nil
}
