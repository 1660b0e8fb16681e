package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

var ErrRunNotFound = errors.New("run not found")

type Run struct {
	InstanceID  string     `json:"instance_id"`
	Task        string     `json:"task"`
	Strategy    string     `json:"strategy"`
	Status      string     `json:"status"`
	Output      string     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (s *Store) CreateRun(instanceID, task, strategy string) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (instance_id, task, strategy, status)
		VALUES (?, ?, ?, ?)`,
		instanceID, task, strategy, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *Store) CompleteRun(instanceID, output string) error {
	return s.finishRun(instanceID, RunStatusCompleted, output, "")
}

func (s *Store) FailRun(instanceID, reason string) error {
	return s.finishRun(instanceID, RunStatusFailed, "", reason)
}

func (s *Store) finishRun(instanceID, status, output, reason string) error {
	result, err := s.db.Exec(`
		UPDATE runs
		SET status = ?, output = ?, error = ?, completed_at = CURRENT_TIMESTAMP
		WHERE instance_id = ?`,
		status, output, reason, instanceID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *Store) GetRun(instanceID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT instance_id, task, strategy, status, output, error, started_at, completed_at
		FROM runs WHERE instance_id = ?`, instanceID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT instance_id, task, strategy, status, output, error, started_at, completed_at
		FROM runs ORDER BY started_at DESC, instance_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*Run, error) {
	run := &Run{}
	var output, errText *string
	err := scanner.Scan(&run.InstanceID, &run.Task, &run.Strategy, &run.Status,
		&output, &errText, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	if output != nil {
		run.Output = *output
	}
	if errText != nil {
		run.Error = *errText
	}
	return run, nil
}
