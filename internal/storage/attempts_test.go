package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shindakun/loginform/internal/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestInitDBSchemaVersion(t *testing.T) {
	db := setupTestDB(t)

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if v != 2 {
		t.Errorf("schema version = %d, want 2", v)
	}
}

func TestInitDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	for i := 0; i < 2; i++ {
		db, err := InitDB(path)
		if err != nil {
			t.Fatalf("InitDB() run %d failed: %v", i+1, err)
		}
		db.Close()
	}
}

func TestRecordAndListAttempt(t *testing.T) {
	db := setupTestDB(t)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &models.LoginAttempt{
		MountID:      "mount-1",
		Username:     "alice",
		Outcome:      models.AttemptOutcomeRejected,
		ErrorMessage: "Invalid credentials",
		Duration:     1500 * time.Millisecond,
		CreatedAt:    created,
	}

	if err := RecordAttempt(db, a); err != nil {
		t.Fatalf("RecordAttempt() failed: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("expected ID to be set")
	}

	attempts, err := ListAttempts(db, "mount-1", 10)
	if err != nil {
		t.Fatalf("ListAttempts() failed: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}

	got := attempts[0]
	if got.ID != a.ID {
		t.Errorf("ID = %d, want %d", got.ID, a.ID)
	}

	if got.MountID != "mount-1" || got.Username != "alice" {
		t.Errorf("got %+v", got)
	}
	if got.Outcome != models.AttemptOutcomeRejected || got.ErrorMessage != "Invalid credentials" {
		t.Errorf("outcome/error = %s/%q", got.Outcome, got.ErrorMessage)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %s, want 1.5s", got.Duration)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}
}

func TestRecordAttemptValidation(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name    string
		attempt models.LoginAttempt
	}{
		{"missing mount", models.LoginAttempt{Outcome: models.AttemptOutcomeSuccess}},
		{"bad outcome", models.LoginAttempt{MountID: "m", Outcome: "maybe"}},
		{"failure without message", models.LoginAttempt{MountID: "m", Outcome: models.AttemptOutcomeFailed}},
		{"negative duration", models.LoginAttempt{MountID: "m", Outcome: models.AttemptOutcomeSuccess, Duration: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.attempt
			if err := RecordAttempt(db, &a); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestListCountAndPruneAttempts(t *testing.T) {
	db := setupTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	attempts := []models.LoginAttempt{
		{MountID: "m1", Username: "alice", Outcome: models.AttemptOutcomeFailed, ErrorMessage: "Network Error", CreatedAt: base},
		{MountID: "m1", Username: "alice", Outcome: models.AttemptOutcomeRejected, ErrorMessage: "Invalid credentials", CreatedAt: base.Add(time.Hour)},
		{MountID: "m1", Username: "alice", Outcome: models.AttemptOutcomeSuccess, CreatedAt: base.Add(2 * time.Hour)},
		{MountID: "m2", Username: "bob", Outcome: models.AttemptOutcomeSuccess, CreatedAt: base.Add(3 * time.Hour)},
	}
	for i := range attempts {
		if err := RecordAttempt(db, &attempts[i]); err != nil {
			t.Fatalf("RecordAttempt() failed: %v", err)
		}
	}

	all, err := ListAttempts(db, "", 0)
	if err != nil {
		t.Fatalf("ListAttempts() failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d attempts, want 4", len(all))
	}
	if all[0].Username != "bob" {
		t.Errorf("expected newest first, got %s", all[0].Username)
	}

	m1, err := ListAttempts(db, "m1", 2)
	if err != nil {
		t.Fatalf("ListAttempts(m1) failed: %v", err)
	}
	if len(m1) != 2 || m1[0].Outcome != models.AttemptOutcomeSuccess {
		t.Errorf("unexpected m1 attempts: %+v", m1)
	}

	counts, err := CountAttempts(db)
	if err != nil {
		t.Fatalf("CountAttempts() failed: %v", err)
	}
	if counts[models.AttemptOutcomeSuccess] != 2 || counts[models.AttemptOutcomeRejected] != 1 || counts[models.AttemptOutcomeFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}

	removed, err := PruneAttempts(db, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("PruneAttempts() failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	remaining, _ := ListAttempts(db, "", 10)
	if len(remaining) != 2 {
		t.Errorf("remaining = %d, want 2", len(remaining))
	}
}
