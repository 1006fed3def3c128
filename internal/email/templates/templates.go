// Package templates renders the GDPR workflow emails from embedded
// html/template files. Each file defines a "subject" and a "body" template.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"strings"
	"time"
)

//go:embed *.tmpl
var files embed.FS

// Name identifies a template file without its extension.
type Name string

const (
	ExportVerify Name = "export_verify"
	ExportData   Name = "export_data"
	DeleteVerify Name = "delete_verify"
	DeleteDone   Name = "delete_done"
)

// Names lists every template the Renderer must be able to render.
var Names = []Name{ExportVerify, ExportData, DeleteVerify, DeleteDone}

const (
	elementSubject = "subject"
	elementBody    = "body"
)

// Controller identifies the data controller in the email footer.
type Controller struct {
	Name    string
	Email   string
	Phone   string
	Company string
}

// VerifyData feeds export_verify and delete_verify.
type VerifyData struct {
	SiteName   string
	Name       string
	Link       string
	ValidFor   string
	Controller Controller
}

// ExportDataData feeds export_data.
type ExportDataData struct {
	SiteName    string
	GeneratedAt time.Time
	Filename    string
	Controller  Controller
}

// DeleteDoneData feeds delete_done.
type DeleteDoneData struct {
	SiteName    string
	Name        string
	DeletedAt   time.Time
	ReferenceID string
	Categories  []string
	Controller  Controller
}

// Renderer holds the parsed templates.
type Renderer struct {
	views map[Name]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	return NewFS(files)
}

// NewFS parses every name in Names from fsys, which must hold <name>.tmpl
// files at its root.
func NewFS(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{views: make(map[Name]*template.Template, len(Names))}
	for _, name := range Names {
		tmpl, err := parse(fsys, name)
		if err != nil {
			return nil, err
		}
		r.views[name] = tmpl
	}
	return r, nil
}

func parse(fsys fs.FS, name Name) (*template.Template, error) {
	// names become filenames
	if err := validateName(string(name)); err != nil {
		return nil, err
	}

	tmpl, err := template.New(string(name)).Funcs(funcs).ParseFS(fsys, string(name)+".tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	for _, element := range []string{elementSubject, elementBody} {
		if tmpl.Lookup(element) == nil {
			return nil, fmt.Errorf("template %s: missing %s template", name, element)
		}
	}
	return tmpl, nil
}

// Render executes the named template and returns the subject and HTML body.
func (r *Renderer) Render(name Name, data any) (subject, body string, err error) {
	tmpl, ok := r.views[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, elementSubject, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	// the subject is a header, not HTML
	subject = strings.TrimSpace(html.UnescapeString(buf.String()))

	buf.Reset()
	if err := tmpl.ExecuteTemplate(&buf, elementBody, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return subject, buf.String(), nil
}

var funcs = template.FuncMap{
	"datetime": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04 MST")
	},
}

// validateName checks if all characters are alphanumeric, dashes or underscores.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty template name")
	}
	for _, c := range name {
		if !validNameRune(c) {
			return fmt.Errorf("invalid character %q in template name: %s", c, name)
		}
	}
	return nil
}

func validNameRune(r rune) bool {
	return r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
