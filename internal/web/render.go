package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"elstudio.app/internal/api"
	"elstudio.app/internal/obs"
	"elstudio.app/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"formatDate": formatDate,
}).ParseFS(templateFS, "templates/*.html"))

// viewData is the envelope handed to every template.
type viewData struct {
	Title   string
	Active  string
	Session *session.Session
	Viewer  *api.Profile
	Org     *api.Organization
	Today   string
	CSRF    string
	Error   string
	Notice  string
	Data    any
}

// render executes one page template. Header and footer chrome (viewer name,
// organization branding, today's date in the viewer's format) loads here when
// the handler did not already have it; chrome failures degrade to the plain
// header rather than failing the page. The CSRF token is minted before
// headers flush so the cookie can still be set.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data viewData) {
	if data.Session == nil {
		if sess, ok := session.FromContext(r.Context()); ok {
			data.Session = &sess
		}
	}
	if data.Session != nil {
		if data.Viewer == nil {
			if profile, err := s.api.Me(r.Context(), data.Session.Token); err == nil {
				data.Viewer = &profile
			}
		}
		if data.Org == nil {
			if org, err := s.api.Organization(r.Context(), data.Session.Token); err == nil {
				data.Org = &org
			}
		}
	}
	pref := ""
	if data.Viewer != nil {
		pref = data.Viewer.DateFormat
	}
	data.Today = formatDate(time.Now().Format("2006-01-02"), pref)
	if data.CSRF == "" {
		data.CSRF = s.csrfToken(w, r)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		obs.Log("error", "render_failed", map[string]any{"template": name, "error": err.Error()})
	}
}

// renderDenied substitutes the access-denied placeholder for the screen's
// content. The response stays on the requested path; only the body changes.
func (s *Server) renderDenied(w http.ResponseWriter, r *http.Request, sess session.Session, ok bool) {
	data := viewData{Title: "Access denied"}
	if ok {
		data.Session = &sess
	}
	s.render(w, r, http.StatusForbidden, "denied", data)
}

// renderError is the generic failure page for backend errors that are neither
// 401s nor validation problems.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, msg string) {
	s.render(w, r, http.StatusBadGateway, "error", viewData{Title: "Something went wrong", Error: msg})
}

// formatDate renders an ISO date per the viewer's preference. Unparseable
// input passes through untouched.
func formatDate(iso, pref string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	if pref == "DD/MM/YYYY" {
		return t.Format("02/01/2006")
	}
	return t.Format("2006-01-02")
}
