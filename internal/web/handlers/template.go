package handlers

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/shindakun/loginform/internal/models"
	"github.com/shindakun/loginform/internal/web"
)

// pages are rendered inside the base layout
var pages = []string{"login", "404"}

// TemplateData holds the data passed to templates
type TemplateData struct {
	MountID   string
	State     models.FormState
	View      models.View
	Refresh   bool   // No-JS fallback: reload the page while loading
	CSRFToken string // CSRF token for forms and HTMX requests
	CSRFField string
}

// templates holds the parsed page and partial templates
type templates struct {
	pages    map[string]*template.Template
	partials *template.Template
}

// parseTemplates parses the embedded templates once at startup
func parseTemplates() (*templates, error) {
	t := &templates{pages: make(map[string]*template.Template)}

	for _, name := range pages {
		tmpl, err := template.New(name).ParseFS(web.Assets,
			"templates/layouts/base.html",
			"templates/pages/"+name+".html",
			"templates/partials/*.html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}

	partials, err := template.New("partials").ParseFS(web.Assets, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	t.partials = partials

	return t, nil
}

// newTemplateData builds template data for a mount's committed state
func (h *Handlers) newTemplateData(r *http.Request, mountID string, state models.FormState) TemplateData {
	return TemplateData{
		MountID:   mountID,
		State:     state,
		View:      state.View(),
		Refresh:   state.View() == models.ViewLoading,
		CSRFToken: csrf.Token(r),
		CSRFField: h.csrfField,
	}
}

// renderTemplate renders a page with the base layout
func (h *Handlers) renderTemplate(w http.ResponseWriter, name string, data TemplateData) error {
	tmpl, ok := h.templates.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial renders a partial template (for HTMX)
func (h *Handlers) renderPartial(w http.ResponseWriter, name string, data TemplateData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return h.templates.partials.ExecuteTemplate(w, name, data)
}
