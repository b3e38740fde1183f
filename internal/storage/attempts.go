package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shindakun/loginform/internal/models"
)

// RecordAttempt stores a resolved login attempt and sets its ID
func RecordAttempt(db *sql.DB, a *models.LoginAttempt) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid login attempt: %w", err)
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	result, err := db.Exec(`
		INSERT INTO login_attempts (mount_id, username, outcome, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		a.MountID, a.Username, a.Outcome, a.ErrorMessage, a.Duration.Milliseconds(), a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get attempt id: %w", err)
	}
	a.ID = id

	return nil
}

// ListAttempts returns the most recent attempts, newest first. An empty
// mountID lists attempts from every mount.
func ListAttempts(db *sql.DB, mountID string, limit int) ([]models.LoginAttempt, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, mount_id, username, outcome, error, duration_ms, created_at
		FROM login_attempts
	`
	args := []interface{}{}
	if mountID != "" {
		query += " WHERE mount_id = ?"
		args = append(args, mountID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list login attempts: %w", err)
	}
	defer rows.Close()

	attempts := []models.LoginAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}

	return attempts, rows.Err()
}

// CountAttempts returns the number of attempts per outcome
func CountAttempts(db *sql.DB) (map[models.AttemptOutcome]int, error) {
	rows, err := db.Query("SELECT outcome, COUNT(*) FROM login_attempts GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("failed to count login attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.AttemptOutcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan attempt count: %w", err)
		}
		counts[models.AttemptOutcome(outcome)] = n
	}

	return counts, rows.Err()
}

// PruneAttempts deletes attempts created before cutoff and returns how many
// were removed
func PruneAttempts(db *sql.DB, cutoff time.Time) (int64, error) {
	result, err := db.Exec("DELETE FROM login_attempts WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune login attempts: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(s scanner) (*models.LoginAttempt, error) {
	var a models.LoginAttempt
	var errMsg sql.NullString
	var durationMS int64
	var outcome string

	if err := s.Scan(&a.ID, &a.MountID, &a.Username, &outcome, &errMsg, &durationMS, &a.CreatedAt); err != nil {
		return nil, err
	}

	a.Outcome = models.AttemptOutcome(outcome)
	a.ErrorMessage = errMsg.String
	a.Duration = time.Duration(durationMS) * time.Millisecond

	return &a, nil
}
