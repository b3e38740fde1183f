package login

import (
	"log"

	"github.com/shindakun/loginform/internal/models"
)

// SessionCookieName is the cookie the session token is persisted under
const SessionCookieName = "session-cookie"

// CookieWriter is the client-side cookie store the token is written to
type CookieWriter interface {
	Set(name, value string)
}

// PersistToken returns a hook that writes the session token to store each
// time a commit changes the token to a new non-empty value. Commits that
// leave the token unchanged never write.
func PersistToken(store CookieWriter, cookieName string, logger *log.Logger) Hook {
	if cookieName == "" {
		cookieName = SessionCookieName
	}

	return func(prev, next models.FormState, _ Event) {
		if next.SessionToken == "" || next.SessionToken == prev.SessionToken {
			return
		}

		store.Set(cookieName, next.SessionToken)
		// Navigation after login is not implemented
		logger.Println("redirect")
	}
}

// OnResolved returns a hook that calls fn with the terminal event of every
// resolved submission and the state it produced
func OnResolved(fn func(next models.FormState, ev Event)) Hook {
	return func(_, next models.FormState, ev Event) {
		switch ev.(type) {
		case LoginSucceeded, LoginFailed:
			fn(next, ev)
		}
	}
}
