package handlers

import (
	"errors"
	"io/fs"
	"log"
	"net/http"

	"github.com/shindakun/loginform/internal/auth"
	"github.com/shindakun/loginform/internal/login"
	"github.com/shindakun/loginform/internal/metrics"
	"github.com/shindakun/loginform/internal/models"
	"github.com/shindakun/loginform/internal/mounts"
	"github.com/shindakun/loginform/internal/web"
)

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	registry  *mounts.Registry
	templates *templates
	logger    *log.Logger
	csrfField string
}

// New creates a new Handlers instance. Templates are parsed once here.
func New(registry *mounts.Registry, csrfField string, logger *log.Logger) (*Handlers, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	if csrfField == "" {
		csrfField = "csrf_token"
	}

	return &Handlers{
		registry:  registry,
		templates: tmpl,
		logger:    logger,
		csrfField: csrfField,
	}, nil
}

// Landing mounts a fresh login form for the browser and redirects to it
func (h *Handlers) Landing(w http.ResponseWriter, r *http.Request) {
	browserID, ok := auth.GetBrowserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	m := h.registry.Mount(browserID)
	h.logger.Printf("Mounted login form %s", m.ID)

	http.Redirect(w, r, "/login/"+m.ID, http.StatusSeeOther)
}

// Page renders the full login page with the mount's current view
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	m, ok := mounts.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	// Read before flushing so a rendered token always has its cookie
	state := m.Form.State()
	h.flushCookies(w, m)

	data := h.newTemplateData(r, m.ID, state)
	if err := h.renderTemplate(w, "login", data); err != nil {
		h.logger.Printf("Error rendering login template: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// View returns the view partial (HTMX polling while loading)
func (h *Handlers) View(w http.ResponseWriter, r *http.Request) {
	m, ok := mounts.FromContext(r.Context())
	if !ok {
		http.Error(w, "Mount not found", http.StatusNotFound)
		return
	}

	h.renderView(w, r, m, m.Form.State())
}

// Field sets a single form field. The field is named either by the name
// parameter or, for HTMX, by the triggering input.
func (h *Handlers) Field(w http.ResponseWriter, r *http.Request) {
	m, ok := mounts.FromContext(r.Context())
	if !ok {
		http.Error(w, "Mount not found", http.StatusNotFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	name := r.PostFormValue("name")
	value := r.PostFormValue("value")
	if name == "" {
		name = r.Header.Get("HX-Trigger-Name")
		value = r.PostFormValue(name)
	}

	if _, err := m.Form.SubmitField(name, value); err != nil {
		if errors.Is(err, login.ErrUnknownField) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.handleFormError(w, r, err)
		return
	}

	h.flushCookies(w, m)

	if isHTMX(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login/"+m.ID, http.StatusSeeOther)
}

// Submit applies the posted field values and submits the form
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	m, ok := mounts.FromContext(r.Context())
	if !ok {
		http.Error(w, "Mount not found", http.StatusNotFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	// Inputs edited without HTMX only arrive with the submission
	for _, name := range []string{models.FieldUsername, models.FieldPassword} {
		values, present := r.PostForm[name]
		if !present {
			continue
		}
		if _, err := m.Form.SubmitField(name, values[0]); err != nil {
			h.handleFormError(w, r, err)
			return
		}
	}

	state, err := m.Form.Submit()
	if err != nil {
		h.handleFormError(w, r, err)
		return
	}

	if isHTMX(r) {
		h.renderView(w, r, m, state)
		return
	}

	h.flushCookies(w, m)
	http.Redirect(w, r, "/login/"+m.ID, http.StatusSeeOther)
}

// Unmount discards the mount
func (h *Handlers) Unmount(w http.ResponseWriter, r *http.Request) {
	m, ok := mounts.FromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	h.flushCookies(w, m)
	h.registry.Unmount(m.ID)
	h.logger.Printf("Unmounted login form %s", m.ID)

	w.WriteHeader(http.StatusNoContent)
}

// Healthz reports liveness
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ServeStatic serves the embedded static files
func (h *Handlers) ServeStatic(w http.ResponseWriter, r *http.Request) {
	static, err := fs.Sub(web.Assets, "static")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.StripPrefix("/static/", http.FileServer(http.FS(static))).ServeHTTP(w, r)
}

// NotFound renders the 404 page
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)

	tmpl := h.templates.pages["404"]
	if err := tmpl.ExecuteTemplate(w, "base", TemplateData{}); err != nil {
		h.logger.Printf("Error rendering 404 template: %v", err)
	}
}

// renderView writes the view partial for state
func (h *Handlers) renderView(w http.ResponseWriter, r *http.Request, m *mounts.Mount, state models.FormState) {
	h.flushCookies(w, m)

	data := h.newTemplateData(r, m.ID, state)
	if err := h.renderPartial(w, "view", data); err != nil {
		h.logger.Printf("Error rendering view partial: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// flushCookies delivers the cookie writes the mount produced since the
// last response. It must run after the state to render has been read and
// before the response header is written.
func (h *Handlers) flushCookies(w http.ResponseWriter, m *mounts.Mount) {
	if n := m.Cookies.Flush(w); n > 0 {
		metrics.CookieWritesTotal.Add(float64(n))
	}
}

// handleFormError answers a request whose form went away mid-request
func (h *Handlers) handleFormError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, login.ErrUnmounted) {
		if isHTMX(r) {
			w.Header().Set("HX-Redirect", "/")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.logger.Printf("Error updating login form: %v", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
