package mounts

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shindakun/loginform/internal/authclient"
	"github.com/shindakun/loginform/internal/cookie"
	"github.com/shindakun/loginform/internal/login"
	"github.com/shindakun/loginform/internal/models"
	"github.com/shindakun/loginform/internal/storage"
)

// stubAuth answers every login with a fixed result
type stubAuth struct {
	token string
	err   error
}

func (a stubAuth) Login(ctx context.Context, creds models.Credentials) (string, error) {
	return a.token, a.err
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testOptions() Options {
	return Options{
		Max:        10,
		TTL:        time.Minute,
		CookieName: "session-cookie",
		Cookie:     cookie.DefaultOptions(),
	}
}

func TestRegistryMountAndGet(t *testing.T) {
	r := NewRegistry(testOptions(), stubAuth{token: "abc"}, nil, testLogger())
	defer r.Close()

	m := r.Mount("browser-1")
	if m.ID == "" {
		t.Fatal("expected mount id")
	}
	if m.Form.State() != (models.FormState{}) {
		t.Errorf("new mount should start empty, got %+v", m.Form.State())
	}

	got, err := r.Get(m.ID, "browser-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != m {
		t.Error("Get() returned a different mount")
	}

	if _, err := r.Get(m.ID, "browser-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign owner: expected ErrNotFound, got %v", err)
	}
	if _, err := r.Get("missing", "browser-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}

	other := r.Mount("browser-1")
	if other.ID == m.ID {
		t.Error("each mount must get a fresh id")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryUnmountClosesForm(t *testing.T) {
	r := NewRegistry(testOptions(), stubAuth{token: "abc"}, nil, testLogger())
	defer r.Close()

	m := r.Mount("browser-1")
	if !r.Unmount(m.ID) {
		t.Fatal("Unmount() = false, want true")
	}
	if r.Unmount(m.ID) {
		t.Error("second Unmount() = true, want false")
	}

	select {
	case <-m.Form.Done():
	case <-time.After(time.Second):
		t.Fatal("form not closed after unmount")
	}

	if _, err := m.Form.Submit(); !errors.Is(err, login.ErrUnmounted) {
		t.Errorf("Submit after unmount: expected ErrUnmounted, got %v", err)
	}
}

func TestRegistryEvictsOldestBeyondMax(t *testing.T) {
	opts := testOptions()
	opts.Max = 2
	r := NewRegistry(opts, stubAuth{token: "abc"}, nil, testLogger())
	defer r.Close()

	first := r.Mount("b")
	r.Mount("b")
	r.Mount("b")

	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if _, err := r.Get(first.ID, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("oldest mount should be evicted, got %v", err)
	}
	select {
	case <-first.Form.Done():
	case <-time.After(time.Second):
		t.Fatal("evicted form not closed")
	}
}

func TestRegistryExpiresMounts(t *testing.T) {
	opts := testOptions()
	opts.TTL = 50 * time.Millisecond
	r := NewRegistry(opts, stubAuth{token: "abc"}, nil, testLogger())
	defer r.Close()

	m := r.Mount("b")
	time.Sleep(100 * time.Millisecond)

	if _, err := r.Get(m.ID, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired mount: expected ErrNotFound, got %v", err)
	}

	select {
	case <-m.Form.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expired form not closed")
	}
}

func TestRegistryPersistsTokenToPendingCookies(t *testing.T) {
	r := NewRegistry(testOptions(), stubAuth{token: "abc123"}, nil, testLogger())
	defer r.Close()

	m := r.Mount("b")
	m.Form.SubmitField(models.FieldUsername, "alice")
	m.Form.Submit()
	m.Form.Wait()

	if m.Cookies.Len() != 1 {
		t.Fatalf("pending cookies = %d, want 1", m.Cookies.Len())
	}

	w := httptest.NewRecorder()
	m.Cookies.Flush(w)
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "session-cookie" || cookies[0].Value != "abc123" {
		t.Errorf("cookies = %v, want session-cookie=abc123", cookies)
	}
}

func TestRegistryAuditsAttempts(t *testing.T) {
	db, err := storage.InitDB(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	tests := []struct {
		name    string
		auth    stubAuth
		outcome models.AttemptOutcome
		message string
	}{
		{"success", stubAuth{token: "abc123"}, models.AttemptOutcomeSuccess, ""},
		{"rejected", stubAuth{err: &authclient.RejectedError{Message: "Invalid credentials"}}, models.AttemptOutcomeRejected, "Invalid credentials"},
		{"failed", stubAuth{err: &authclient.RequestError{Message: "Network Error"}}, models.AttemptOutcomeFailed, "Network Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(testOptions(), tt.auth, db, testLogger())
			defer r.Close()

			m := r.Mount("b")
			m.Form.SubmitField(models.FieldUsername, "alice")
			m.Form.SubmitField(models.FieldPassword, "secret")
			m.Form.Submit()
			m.Form.Wait()

			attempts, err := storage.ListAttempts(db, m.ID, 10)
			if err != nil {
				t.Fatalf("ListAttempts() failed: %v", err)
			}
			if len(attempts) != 1 {
				t.Fatalf("attempts = %d, want 1", len(attempts))
			}

			a := attempts[0]
			if a.Outcome != tt.outcome || a.ErrorMessage != tt.message || a.Username != "alice" {
				t.Errorf("attempt = %+v", a)
			}
		})
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		ev   login.Event
		want models.AttemptOutcome
	}{
		{login.LoginSucceeded{Token: "t"}, models.AttemptOutcomeSuccess},
		{login.LoginFailed{Message: "x", Err: &authclient.RejectedError{Message: "x"}}, models.AttemptOutcomeRejected},
		{login.LoginFailed{Message: "Network Error", Err: &authclient.RequestError{Message: "Network Error"}}, models.AttemptOutcomeFailed},
		{login.LoginFailed{Message: "x"}, models.AttemptOutcomeFailed},
	}

	for _, tt := range tests {
		if got := Outcome(tt.ev); got != tt.want {
			t.Errorf("Outcome(%#v) = %s, want %s", tt.ev, got, tt.want)
		}
	}
}

// gatedAuth answers with token once release is closed
type gatedAuth struct {
	token   string
	release chan struct{}
}

func (a gatedAuth) Login(ctx context.Context, creds models.Credentials) (string, error) {
	<-a.release
	return a.token, nil
}

func TestRegistryAuditsAttemptsResolvedAfterUnmount(t *testing.T) {
	db, err := storage.InitDB(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	auth := gatedAuth{token: "abc123", release: make(chan struct{})}
	r := NewRegistry(testOptions(), auth, db, testLogger())
	defer r.Close()

	m := r.Mount("b")
	m.Form.SubmitField(models.FieldUsername, "alice")
	m.Form.Submit()
	r.Unmount(m.ID)

	close(auth.release)
	m.Form.Wait()

	attempts, err := storage.ListAttempts(db, m.ID, 10)
	if err != nil {
		t.Fatalf("ListAttempts() failed: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Outcome != models.AttemptOutcomeSuccess {
		t.Errorf("attempts = %+v, want one success", attempts)
	}
	if m.Cookies.Len() != 0 {
		t.Error("unmounted form must not queue a cookie")
	}
}
