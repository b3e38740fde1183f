package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shindakun/loginform/internal/auth"
	"github.com/shindakun/loginform/internal/mounts"
)

// RequireBrowser makes sure every request carries a browser id, issuing
// one when missing, and stores it in the request context
func RequireBrowser(sessionManager *auth.SessionManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sessionManager.EnsureBrowserID(w, r)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := auth.SetBrowserIDInContext(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadMount resolves the {id} route parameter to a mount owned by the
// current browser. Unknown or expired mounts send the browser back to / to
// mount a fresh form.
func LoadMount(registry *mounts.Registry) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			browserID, _ := auth.GetBrowserIDFromContext(r.Context())

			m, err := registry.Get(chi.URLParam(r, "id"), browserID)
			if err != nil {
				// Check if this is an HTMX request
				if r.Header.Get("HX-Request") == "true" {
					// For HTMX requests, use HX-Redirect header for client-side redirect
					w.Header().Set("HX-Redirect", "/")
					w.WriteHeader(http.StatusNotFound)
					return
				}
				if r.Method == http.MethodDelete {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			ctx := mounts.WithMount(r.Context(), m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
