package api

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{
	"credential": mustPage("credential.html"),
	"customer":   mustPage("customer.html"),
	"approved":   mustPage("approved.html"),
	"rejected":   mustPage("rejected.html"),
}

func mustPage(name string) *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

// pageData feeds every consent page; each template reads what it needs.
type pageData struct {
	Title           string
	ClientName      string
	Request         string
	State           string
	Email           string
	CustomerContext string
	RedirectTo      string
	Error           string
}

func renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, name+".html", data); err != nil {
		slog.Error("render page", "page", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
