package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionName         = "loginform-browser"
	sessionKeyBrowserID = "browser_id"
)

type contextKey string

const browserIDKey contextKey = "browser_id"

// SessionManager identifies browsers with a signed, HTTP-only cookie so a
// mounted form can only be driven by the browser that mounted it
type SessionManager struct {
	store *sessions.CookieStore
}

// InitSessions creates a new session manager
func InitSessions(secret string, maxAge int, secure bool, sameSite http.SameSite) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true, // Prevent JavaScript access
		Secure:   secure,
		SameSite: sameSite,
	}

	return &SessionManager{
		store: store,
	}
}

// BrowserID returns the browser id from the request cookie, if any
func (sm *SessionManager) BrowserID(r *http.Request) (string, bool) {
	session, err := sm.store.Get(r, sessionName)
	if err != nil {
		return "", false
	}

	id, ok := session.Values[sessionKeyBrowserID].(string)
	return id, ok && id != ""
}

// EnsureBrowserID returns the browser id, issuing and saving a new one when
// the request has none. It must run before the response header is written.
func (sm *SessionManager) EnsureBrowserID(w http.ResponseWriter, r *http.Request) (string, error) {
	// A cookie that fails to decode (e.g. after a secret rotation) yields a
	// fresh session, which is what we want
	session, _ := sm.store.Get(r, sessionName)

	if id, ok := session.Values[sessionKeyBrowserID].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.New().String()
	session.Values[sessionKeyBrowserID] = id

	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save browser session: %w", err)
	}

	return id, nil
}

// GetBrowserIDFromContext retrieves the browser id from request context
func GetBrowserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(browserIDKey).(string)
	return id, ok && id != ""
}

// SetBrowserIDInContext stores the browser id in request context
func SetBrowserIDInContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, browserIDKey, id)
}
