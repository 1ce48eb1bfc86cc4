// Package web is the portal's HTTP surface: screen handlers, the route
// guard, and the session plumbing that ties them together.
package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"

	"elstudio.app/internal/api"
	"elstudio.app/internal/audit"
	"elstudio.app/internal/guard"
	"elstudio.app/internal/obs"
	"elstudio.app/internal/session"
)

// Server wires the backend client, cookie codec, and access policy into an
// http.Handler. It is stateless between requests; all session state lives in
// the browser cookie.
type Server struct {
	api     *api.Client
	codec   *securecookie.SecureCookie
	policy  guard.Policy
	version string
}

// New builds a Server. The codec must be shared with nothing else; it signs
// and encrypts both the session and CSRF cookies.
func New(client *api.Client, codec *securecookie.SecureCookie, version string) *Server {
	return &Server{
		api:     client,
		codec:   codec,
		policy:  guard.Default(),
		version: version,
	}
}

// Handler assembles the full middleware stack and route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(SecurityHeaders)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Get("/", s.handleRoot)

	r.Get("/login", s.guarded(guard.ScreenLogin, s.handleLoginForm))
	r.Method(http.MethodPost, "/login",
		RateLimit(http.HandlerFunc(s.guarded(guard.ScreenLogin, s.handleLogin)), 5, 1))
	r.Post("/logout", s.handleLogout)

	r.Get("/forgot-password", s.guarded(guard.ScreenForgotPassword, s.handleForgotPasswordForm))
	r.Post("/forgot-password", s.guarded(guard.ScreenForgotPassword, s.handleForgotPassword))
	r.Get("/reset-password", s.guarded(guard.ScreenResetPassword, s.handleResetPasswordForm))
	r.Post("/reset-password", s.guarded(guard.ScreenResetPassword, s.handleResetPassword))

	r.Get("/change-password", s.guarded(guard.ScreenChangePassword, s.handleChangePasswordForm))
	r.Post("/change-password", s.guarded(guard.ScreenChangePassword, s.handleChangePassword))

	r.Get("/dashboard", s.guarded(guard.ScreenDashboard, s.handleDashboard))

	r.Get("/profile", s.guarded(guard.ScreenProfile, s.handleProfileForm))
	r.Post("/profile", s.guarded(guard.ScreenProfile, s.handleProfileUpdate))
	r.Post("/profile/organization", s.guarded(guard.ScreenProfile, s.handleOrganizationUpdate))

	r.Get("/employees", s.guarded(guard.ScreenEmployeeManagement, s.handleEmployees))
	r.Get("/employees/new", s.guarded(guard.ScreenEmployeeCreate, s.handleEmployeeCreateForm))
	r.Post("/employees/new", s.guarded(guard.ScreenEmployeeCreate, s.handleEmployeeCreate))
	r.Get("/employees/inactive", s.guarded(guard.ScreenInactiveUsers, s.handleInactiveUsers))
	r.Get("/employees/{id}", s.guarded(guard.ScreenEmployeeEdit, s.handleEmployeeEditForm))
	r.Post("/employees/{id}", s.guarded(guard.ScreenEmployeeEdit, s.handleEmployeeUpdate))
	r.Post("/employees/{id}/deactivate", s.guarded(guard.ScreenEmployeeManagement, s.handleEmployeeDeactivate))
	r.Post("/employees/{id}/reactivate", s.guarded(guard.ScreenInactiveUsers, s.handleEmployeeReactivate))
	r.Post("/employees/{id}/delete", s.guarded(guard.ScreenInactiveUsers, s.handleEmployeeDelete))

	r.Get("/roles", s.guarded(guard.ScreenRoleManagement, s.handleRoles))
	r.Post("/roles", s.guarded(guard.ScreenRoleManagement, s.handleRoleCreate))
	r.Post("/roles/{id}", s.guarded(guard.ScreenRoleManagement, s.handleRoleUpdate))
	r.Post("/roles/{id}/delete", s.guarded(guard.ScreenRoleManagement, s.handleRoleDelete))

	return obs.Instrument(r)
}

// sessions builds the per-request session store backed by the encrypted
// cookie.
func (s *Server) sessions(w http.ResponseWriter, r *http.Request) *session.Store {
	return session.NewStore(session.NewCookieStorage(s.codec, w, r))
}

// guarded resolves the access policy for one screen before its handler runs.
// An allowed request carries the session in its context; a denied request is
// answered in place and never reaches the handler.
func (s *Server) guarded(screen string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions(w, r).Current()
		sub := guard.Subject{Authenticated: ok, Roles: sess.Claims.Roles}

		switch s.policy.Decide(screen, sub) {
		case guard.RedirectLogin:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		case guard.Deny:
			s.renderDenied(w, r, sess, ok)
			return
		}

		if ok {
			r = r.WithContext(session.ContextWithSession(r.Context(), sess))
		}
		next(w, r)
	}
}

// recoverUnauthorized implements the 401 protocol: clear the session and land
// on login. Each handler returns right after calling it, so a request clears
// and redirects at most once no matter how the backend failed.
func (s *Server) recoverUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, api.ErrUnauthorized) {
		return false
	}
	s.sessions(w, r).Clear()
	_ = audit.LogEvent(r.Context(), "session.cleared", map[string]any{"reason": "backend_unauthorized"})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
	return true
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleRoot sends authenticated visitors to the dashboard and everyone else
// to login.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions(w, r).Current(); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
