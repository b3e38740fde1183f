package mounts

import (
	"database/sql"
	"errors"
	"log"

	"github.com/shindakun/loginform/internal/authclient"
	"github.com/shindakun/loginform/internal/login"
	"github.com/shindakun/loginform/internal/metrics"
	"github.com/shindakun/loginform/internal/models"
	"github.com/shindakun/loginform/internal/storage"
)

// Outcome classifies a terminal login event
func Outcome(ev login.Event) models.AttemptOutcome {
	switch e := ev.(type) {
	case login.LoginSucceeded:
		return models.AttemptOutcomeSuccess
	case login.LoginFailed:
		var rejected *authclient.RejectedError
		if errors.As(e.Err, &rejected) {
			return models.AttemptOutcomeRejected
		}
	}
	return models.AttemptOutcomeFailed
}

func metricsHook(_, _ models.FormState, ev login.Event) {
	switch e := ev.(type) {
	case login.Submitted:
		metrics.SubmissionsTotal.Inc()
	case login.LoginSucceeded:
		outcome := string(models.AttemptOutcomeSuccess)
		metrics.LoginResultsTotal.WithLabelValues(outcome).Inc()
		metrics.LoginRequestDuration.WithLabelValues(outcome).Observe(e.Elapsed.Seconds())
	case login.LoginFailed:
		outcome := string(Outcome(e))
		metrics.LoginResultsTotal.WithLabelValues(outcome).Inc()
		metrics.LoginRequestDuration.WithLabelValues(outcome).Observe(e.Elapsed.Seconds())
	}
}

// resolvedLogHook logs the outcome of every resolved submission of mountID
func resolvedLogHook(mountID string, logger *log.Logger) login.Hook {
	return login.OnResolved(func(_ models.FormState, ev login.Event) {
		logger.Printf("Login for mount %s resolved: %s", mountID, Outcome(ev))
	})
}

// auditObserver records every resolved submission of mountID
func auditObserver(db *sql.DB, mountID string, logger *log.Logger) login.Observer {
	return func(ev login.Event) {
		attempt := &models.LoginAttempt{
			MountID: mountID,
			Outcome: Outcome(ev),
		}

		switch e := ev.(type) {
		case login.LoginSucceeded:
			attempt.Username = e.Username
			attempt.Duration = e.Elapsed
		case login.LoginFailed:
			attempt.Username = e.Username
			attempt.ErrorMessage = e.Message
			attempt.Duration = e.Elapsed
		}

		if err := storage.RecordAttempt(db, attempt); err != nil {
			logger.Printf("Failed to record login attempt for mount %s: %v", mountID, err)
		}
	}
}
