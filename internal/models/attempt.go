package models

import (
	"fmt"
	"time"
)

// AttemptOutcome is the terminal result of a login submission
type AttemptOutcome string

const (
	AttemptOutcomeSuccess  AttemptOutcome = "success"
	AttemptOutcomeRejected AttemptOutcome = "rejected"
	AttemptOutcomeFailed   AttemptOutcome = "failed"
)

// LoginAttempt is an audit record of one resolved submission.
// Passwords and tokens are never recorded.
type LoginAttempt struct {
	ID           int64          `json:"id" db:"id"`
	MountID      string         `json:"mount_id" db:"mount_id"`
	Username     string         `json:"username" db:"username"`
	Outcome      AttemptOutcome `json:"outcome" db:"outcome"`
	ErrorMessage string         `json:"error_message,omitempty" db:"error"`
	Duration     time.Duration  `json:"duration" db:"duration_ms"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// Validate checks that the attempt can be stored
func (a *LoginAttempt) Validate() error {
	if a.MountID == "" {
		return fmt.Errorf("mount_id is required")
	}

	switch a.Outcome {
	case AttemptOutcomeSuccess, AttemptOutcomeRejected, AttemptOutcomeFailed:
	default:
		return fmt.Errorf("invalid outcome: %q", a.Outcome)
	}

	if a.Outcome != AttemptOutcomeSuccess && a.ErrorMessage == "" {
		return fmt.Errorf("error_message is required for outcome %s", a.Outcome)
	}

	if a.Duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}

	return nil
}
