// Package views renders the HTML pages served by the service.
package views

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var files embed.FS

var pages = template.Must(template.ParseFS(files, "templates/*.html"))

const (
	Index     = "index.html"
	Success   = "success.html"
	Failure   = "failure.html"
	First     = "first.html"
	FirstPost = "first_post.html"
	Session   = "session.html"
)

// Render executes the named page into a buffer first so a template error
// never leaves a half-written response.
func Render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
