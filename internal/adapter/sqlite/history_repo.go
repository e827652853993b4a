package sqlite

import (
	"database/sql"
	"time"

	"github.com/ostrel/batchget/internal/domain"
)

// CreateRun records the start of a batch run
func (s *Store) CreateRun(id string, startedAt time.Time, totalTasks int) error {
	query := `
		INSERT INTO runs (id, started_at, total_tasks)
		VALUES (?, ?, ?)
	`
	_, err := s.db.Exec(query, id, startedAt, totalTasks)
	return err
}

// RecordResult journals one task's terminal outcome
func (s *Store) RecordResult(runID string, res domain.TaskResult) error {
	var lastError sql.NullString
	if res.Err != nil {
		lastError = sql.NullString{String: res.Err.Error(), Valid: true}
	}

	query := `
		INSERT INTO task_results (
			run_id, url, name, status, attempts, bytes_done, total_bytes, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		runID, res.Task.URL, res.Task.Name, res.Status,
		res.Attempts, res.BytesDone, res.TotalBytes, lastError)
	return err
}

// FinishRun records the end of a batch run with its aggregate counts
func (s *Store) FinishRun(id string, finishedAt time.Time, completed, failed int) error {
	query := `
		UPDATE runs
		SET finished_at = ?, completed = ?, failed = ?
		WHERE id = ?
	`
	_, err := s.db.Exec(query, finishedAt, completed, failed, id)
	return err
}

// RunRecord is one row of the runs table
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	TotalTasks int
	Completed  int
	Failed     int
}

// GetRun retrieves a run by ID, nil when absent
func (s *Store) GetRun(id string) (*RunRecord, error) {
	query := `
		SELECT id, started_at, finished_at, total_tasks, completed, failed
		FROM runs
		WHERE id = ?
	`
	rec := &RunRecord{}
	var finishedAt sql.NullTime
	err := s.db.QueryRow(query, id).Scan(
		&rec.ID, &rec.StartedAt, &finishedAt,
		&rec.TotalTasks, &rec.Completed, &rec.Failed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		rec.FinishedAt = &finishedAt.Time
	}
	return rec, nil
}

// ResultRecord is one row of the task_results table
type ResultRecord struct {
	URL        string
	Name       string
	Status     string
	Attempts   int
	BytesDone  int64
	TotalBytes int64
	LastError  string
}

// RunResults lists the recorded outcomes of a run
func (s *Store) RunResults(runID string) ([]ResultRecord, error) {
	query := `
		SELECT url, name, status, attempts, bytes_done, total_bytes, last_error
		FROM task_results
		WHERE run_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		var rec ResultRecord
		var lastError sql.NullString
		if err := rows.Scan(&rec.URL, &rec.Name, &rec.Status,
			&rec.Attempts, &rec.BytesDone, &rec.TotalBytes, &lastError); err != nil {
			return nil, err
		}
		if lastError.Valid {
			rec.LastError = lastError.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
