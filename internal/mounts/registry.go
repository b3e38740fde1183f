// Package mounts keeps one login form per page load. A mount lives until it
// is unmounted, expires or is pushed out by newer mounts.
package mounts

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shindakun/loginform/internal/cookie"
	"github.com/shindakun/loginform/internal/login"
	"github.com/shindakun/loginform/internal/metrics"
)

// ErrNotFound is returned for unknown, expired or foreign mounts
var ErrNotFound = errors.New("mount not found")

// Mount is one mounted login form and the cookie writes it has produced
type Mount struct {
	ID        string
	Owner     string
	Form      *login.Form
	Cookies   *cookie.Pending
	CreatedAt time.Time
}

// Options configures a Registry
type Options struct {
	Max        int
	TTL        time.Duration
	CookieName string
	Cookie     cookie.Options
}

// Registry holds the mounted forms
type Registry struct {
	opts   Options
	auth   login.Authenticator
	db     *sql.DB
	logger *log.Logger
	cache  *expirable.LRU[string, *Mount]
}

// NewRegistry creates a registry whose forms log in through auth. When db
// is non-nil every resolved submission is recorded in the audit log, from
// the request goroutine so a slow database never holds up a form.
func NewRegistry(opts Options, auth login.Authenticator, db *sql.DB, logger *log.Logger) *Registry {
	if opts.CookieName == "" {
		opts.CookieName = login.SessionCookieName
	}

	r := &Registry{
		opts:   opts,
		auth:   auth,
		db:     db,
		logger: logger,
	}
	r.cache = expirable.NewLRU[string, *Mount](opts.Max, r.onEvict, opts.TTL)

	return r
}

// Mount creates a fresh form owned by owner
func (r *Registry) Mount(owner string) *Mount {
	id := uuid.New().String()
	pending := cookie.NewPending(r.opts.Cookie)

	formOpts := []login.Option{
		login.WithHooks(
			login.PersistToken(pending, r.opts.CookieName, r.logger),
			metricsHook,
			resolvedLogHook(id, r.logger),
		),
	}
	if r.db != nil {
		formOpts = append(formOpts, login.WithObserver(auditObserver(r.db, id, r.logger)))
	}

	m := &Mount{
		ID:        id,
		Owner:     owner,
		Form:      login.New(id, r.auth, r.logger, formOpts...),
		Cookies:   pending,
		CreatedAt: time.Now(),
	}

	r.cache.Add(id, m)
	metrics.MountsActive.Inc()
	metrics.MountsTotal.WithLabelValues("mounted").Inc()

	return m
}

// Get returns the mount with the given id if owner mounted it
func (r *Registry) Get(id, owner string) (*Mount, error) {
	m, ok := r.cache.Get(id)
	if !ok || m.Owner != owner {
		return nil, ErrNotFound
	}
	return m, nil
}

// Unmount discards a mount. It reports whether the mount existed.
func (r *Registry) Unmount(id string) bool {
	return r.cache.Remove(id)
}

// Len returns the number of live mounts
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close unmounts every form
func (r *Registry) Close() {
	r.cache.Purge()
}

func (r *Registry) onEvict(id string, m *Mount) {
	m.Form.Close()
	metrics.MountsActive.Dec()
	metrics.MountsTotal.WithLabelValues("unmounted").Inc()
}

type contextKey struct{}

// WithMount stores the mount in ctx
func WithMount(ctx context.Context, m *Mount) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext retrieves the mount stored by WithMount
func FromContext(ctx context.Context) (*Mount, bool) {
	m, ok := ctx.Value(contextKey{}).(*Mount)
	return m, ok && m != nil
}
