package storage

import (
	"database/sql"
	"errors"
	"time"

	"mongocsvexport/internal/etl"

	"github.com/google/uuid"
)

// RunStore persists export run logs and the last status of each job.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// JobStatus is the outcome of the latest run of a job.
type JobStatus struct {
	Job       string    `json:"job"`
	LastRunAt time.Time `json:"lastRunAt"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// ── Run Logs ───────────────────────────────────────────────

func (s *RunStore) CreateRunLog(log *etl.RunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO export_runs (id, job, started_at, finished_at, status, records_read, rows_written, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Job, log.StartedAt, log.FinishedAt, log.Status, log.RecordsRead, log.RowsWritten, log.Error,
	)
	return err
}

// ListRunLogs returns the newest runs first. An empty job lists all jobs.
func (s *RunStore) ListRunLogs(job string, limit int) ([]etl.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.conn.Query(
		`SELECT id, job, started_at, finished_at, status, records_read, rows_written, error
		 FROM export_runs WHERE (? = '' OR job = ?) ORDER BY started_at DESC LIMIT ?`,
		job, job, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []etl.RunLog
	for rows.Next() {
		var l etl.RunLog
		if err := rows.Scan(&l.ID, &l.Job, &l.StartedAt, &l.FinishedAt, &l.Status, &l.RecordsRead, &l.RowsWritten, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ── Job Status ─────────────────────────────────────────────

func (s *RunStore) UpdateJobStatus(job, status, errMsg string) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO job_status (job, last_run_at, last_status, last_error) VALUES (?, ?, ?, ?)
		 ON CONFLICT(job) DO UPDATE SET last_run_at=excluded.last_run_at,
		 last_status=excluded.last_status, last_error=excluded.last_error`,
		job, time.Now(), status, errMsg,
	)
	return err
}

// GetJobStatus returns nil when the job never ran.
func (s *RunStore) GetJobStatus(job string) (*JobStatus, error) {
	st := &JobStatus{}
	err := s.db.conn.QueryRow(
		`SELECT job, last_run_at, last_status, last_error FROM job_status WHERE job = ?`, job,
	).Scan(&st.Job, &st.LastRunAt, &st.Status, &st.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}
