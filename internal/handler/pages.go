package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// Pages renders the few server-side HTML pages the API serves. The only one
// today is the result of following an email verification link, which a
// browser opens directly rather than through the SPA.
//
// TEMPLATE PARSING:
// Templates are embedded in the binary with go:embed and parsed once at
// startup, so the server has no template directory to locate at runtime.
type Pages struct {
	templates *template.Template
	loginURL  string
	logger    *slog.Logger
}

// verifyPage is the data passed to the "verify" template.
type verifyPage struct {
	Title    string
	Message  string
	Success  bool
	LoginURL string
}

// NewPages parses the embedded templates. loginURL is linked from the
// success page; empty hides the link.
func NewPages(loginURL string, logger *slog.Logger) (*Pages, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Pages{templates: tmpl, loginURL: loginURL, logger: logger}, nil
}

func (p *Pages) renderVerify(w http.ResponseWriter, status int, data verifyPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := p.templates.ExecuteTemplate(w, "verify", data); err != nil {
		p.logger.Error("failed to render template",
			slog.String("template", "verify"),
			slog.String("error", err.Error()),
		)
	}
}
