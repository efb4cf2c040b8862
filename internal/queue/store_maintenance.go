package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// AppendLog appends captured process output lines to a job's log, trimming
// to the configured line cap. The last line is tracked separately so
// listings can show it without shipping the whole log.
func (s *Store) AppendLog(ctx context.Context, id int64, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin log tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullString
	row := tx.QueryRowContext(ctx, `SELECT log_text FROM jobs WHERE id = ?`, id)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job %d not found", id)
		}
		return fmt.Errorf("read job log: %w", err)
	}

	var existing []string
	if current.String != "" {
		existing = strings.Split(current.String, "\n")
	}
	existing = append(existing, lines...)
	if limit := s.logLineCap; limit > 0 && len(existing) > limit {
		existing = existing[len(existing)-limit:]
	}

	lastLine := ""
	if len(existing) > 0 {
		lastLine = existing[len(existing)-1]
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET log_text = ?, last_log_line = ?, updated_at = ? WHERE id = ?`,
		strings.Join(existing, "\n"),
		nullableString(lastLine),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("append job log: %w", err)
	}
	return tx.Commit()
}

// RequestCancel flags a job for cancellation. Running stages observe the
// flag and terminate their child process; pending jobs fail immediately at
// claim time.
func (s *Store) RequestCancel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d not found", id)
	}
	return nil
}

// Remove deletes a job and its files from disk. Returns false when the job
// does not exist.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	removeArtifacts(job)

	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RetryFailed moves failed jobs back to pending for reprocessing. With no
// ids, every failed job is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if len(ids) == 0 {
		res, err := s.db.ExecContext(ctx,
			`UPDATE jobs
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, hint = NULL,
                cancel_requested = 0, finished_at = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending, timestamp, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE jobs
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, hint = NULL,
            cancel_requested = 0, finished_at = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing rolls jobs stuck in processing states back to the
// prior done status. Called once at daemon startup after an unclean exit.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	var total int64
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for processing, target := range stageRollbackTransitions {
		res, err := s.db.ExecContext(ctx,
			`UPDATE jobs
             SET status = ?, progress_stage = 'Reset from stuck processing',
                 progress_percent = 0, progress_message = NULL,
                 last_heartbeat = NULL, updated_at = ?
             WHERE status = ?`,
			target, timestamp, processing,
		)
		if err != nil {
			return total, fmt.Errorf("reset stuck jobs: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// UpdateHeartbeat refreshes the heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing rolls processing jobs whose heartbeat expired back
// to the prior done status.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	cutoffValue := cutoff.UTC().Format(time.RFC3339Nano)
	for processing, target := range stageRollbackTransitions {
		res, err := s.db.ExecContext(ctx,
			`UPDATE jobs
             SET status = ?, progress_stage = 'Reclaimed from stale processing',
                 progress_percent = 0, progress_message = NULL,
                 last_heartbeat = NULL, updated_at = ?
             WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
			target, timestamp, processing, cutoffValue,
		)
		if err != nil {
			return total, fmt.Errorf("reclaim stale jobs: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// EvictFinished removes the oldest finished jobs beyond the retention cap,
// deleting their files. Returns the number of evicted jobs.
func (s *Store) EvictFinished(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, errors.New("retention cap must be positive")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (?, ?)
         ORDER BY created_at DESC, id DESC`,
		StatusCompleted, StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("list finished jobs: %w", err)
	}
	defer rows.Close()

	var finished []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return 0, err
		}
		finished = append(finished, job)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(finished) <= keep {
		return 0, nil
	}

	var evicted int64
	for _, job := range finished[keep:] {
		removeArtifacts(job)
		if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, job.ID); err != nil {
			return evicted, fmt.Errorf("evict job %d: %w", job.ID, err)
		}
		evicted++
	}
	return evicted, nil
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusCompleted)
}

// ClearFailed removes only failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusFailed)
}

// Clear removes all jobs and their files.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		removeArtifacts(job)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) clearByStatus(ctx context.Context, status Status) (int64, error) {
	jobs, err := s.List(ctx, status)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		removeArtifacts(job)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, status)
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", status, err)
	}
	return res.RowsAffected()
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return health, nil
		}
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	health.TableExists = true

	row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM jobs")
	if err := row.Scan(&health.TotalJobs); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count jobs: %w", err)
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

func removeArtifacts(job *Job) {
	for _, path := range job.ArtifactPaths() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			// Best effort; eviction must not fail on a missing or busy file.
			continue
		}
	}
}
