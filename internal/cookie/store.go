// Package cookie queues client-side cookie writes and delivers them to the
// browser on the next response.
package cookie

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Options are the attributes applied to every written cookie
type Options struct {
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
}

// DefaultOptions scopes cookies to the whole site with session lifetime
func DefaultOptions() Options {
	return Options{Path: "/"}
}

// Pending collects cookie writes until they are flushed onto a response.
// Writes are fire-and-forget: Set never fails and never blocks on I/O.
type Pending struct {
	opts Options

	mu    sync.Mutex
	queue []*http.Cookie
}

// NewPending creates an empty cookie queue
func NewPending(opts Options) *Pending {
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &Pending{opts: opts}
}

// EncodeValue percent-encodes value the way browsers' encodeURIComponent
// does, so every byte survives the cookie-octet rules of net/http.
// Values made only of letters, digits and -._~ are returned unchanged.
func EncodeValue(value string) string {
	return url.PathEscape(value)
}

// Set queues a write of name=value, with value encoded by EncodeValue
func (p *Pending) Set(name, value string) {
	c := &http.Cookie{
		Name:     name,
		Value:    EncodeValue(value),
		Path:     p.opts.Path,
		Domain:   p.opts.Domain,
		MaxAge:   p.opts.MaxAge,
		Secure:   p.opts.Secure,
		HttpOnly: p.opts.HttpOnly,
		SameSite: p.opts.SameSite,
	}

	p.mu.Lock()
	p.queue = append(p.queue, c)
	p.mu.Unlock()
}

// Flush writes queued cookies as Set-Cookie headers in the order they were
// set and empties the queue. It returns the number of cookies written.
// Flush must be called before the response header is written.
func (p *Pending) Flush(w http.ResponseWriter) int {
	p.mu.Lock()
	queue := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, c := range queue {
		http.SetCookie(w, c)
	}
	return len(queue)
}

// Len returns the number of queued writes
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// ParseSameSite converts a config value into an http.SameSite mode.
// An empty value leaves the attribute unset.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return http.SameSiteDefaultMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, fmt.Errorf("invalid same_site value %q (want lax, strict or none)", s)
	}
}
