// Package view renders the HTML pages from templates embedded in the binary.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	Home        = "home"
	Login       = "login"
	Register    = "register"
	Secrets     = "secrets"
	Person      = "person"
	MyProfile   = "myProfile"
	EditDetails = "editdetails"
)

var pages = []string{Home, Login, Register, Secrets, Person, MyProfile, EditDetails}

// Page is the data every template receives.
type Page struct {
	Title string

	// Name is the signed-in user's display name.
	Name     string
	Identity domain.Identity

	// Profile pre-fills forms; on edit it is the stored profile, on a failed
	// submission it is what the user typed.
	Profile  domain.Profile
	Username string
	Error    string

	// ProviderName is set when federated sign-in is available.
	ProviderName string
}

// Renderer executes named pages.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page together with the shared partials.
func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}

	for _, name := range pages {
		t, err := template.New(name).ParseFS(templateFS, "templates/partials.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("view: parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page name to w.
func (r *Renderer) Render(w io.Writer, name string, data Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("view: unknown page %q", name)
	}
	return t.ExecuteTemplate(w, name+".html", data)
}

// HTML renders into a buffer first so a template error never leaves a
// half-written page behind.
func (r *Renderer) HTML(w http.ResponseWriter, status int, name string, data Page) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
