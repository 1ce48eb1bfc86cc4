package web

import (
	"errors"
	"net/http"
	"strconv"

	"elstudio.app/internal/api"
	"elstudio.app/internal/audit"
	"elstudio.app/internal/guard"
	"elstudio.app/internal/session"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	profile, err := s.api.Me(r.Context(), sess.Token)
	if err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "load profile")
		return
	}
	s.render(w, r, http.StatusOK, "dashboard", viewData{Title: "Dashboard", Active: "dashboard", Viewer: &profile, Data: profile})
}

// profileView bundles the caller's profile with the org settings, which only
// load for super admins.
type profileView struct {
	Profile      api.Profile
	Organization *api.Organization
}

func (s *Server) handleProfileForm(w http.ResponseWriter, r *http.Request) {
	s.renderProfile(w, r, http.StatusOK, "", "")
}

func (s *Server) renderProfile(w http.ResponseWriter, r *http.Request, status int, errMsg, notice string) {
	sess, _ := session.FromContext(r.Context())

	profile, err := s.api.Me(r.Context(), sess.Token)
	if err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "load profile")
		return
	}

	view := profileView{Profile: profile}
	if sess.Claims.HasRole(guard.RoleSuperAdmin) {
		org, err := s.api.Organization(r.Context(), sess.Token)
		if err == nil {
			view.Organization = &org
		} else if s.recoverUnauthorized(w, r, err) {
			return
		}
	}
	s.render(w, r, status, "profile", viewData{Title: "My profile", Active: "profile", Viewer: &profile, Org: view.Organization, Data: view, Error: errMsg, Notice: notice})
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(r) {
		s.renderProfile(w, r, http.StatusForbidden, "Invalid form token, please try again.", "")
		return
	}
	sess, _ := session.FromContext(r.Context())

	upd := api.UpdateProfile{
		FirstName:  r.PostFormValue("first_name"),
		LastName:   r.PostFormValue("last_name"),
		Email:      r.PostFormValue("email"),
		BirthDate:  r.PostFormValue("birth_date"),
		Password:   r.PostFormValue("password"),
		Language:   r.PostFormValue("language"),
		DateFormat: r.PostFormValue("date_format"),
		Theme:      r.PostFormValue("theme"),
	}
	if err := s.api.UpdateProfile(r.Context(), sess.Token, upd); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderProfile(w, r, http.StatusBadRequest, validationMessage(err, "Could not save the profile."), "")
		return
	}
	_ = audit.LogEvent(r.Context(), "profile.updated", nil)
	s.renderProfile(w, r, http.StatusOK, "", "Profile saved.")
}

func (s *Server) handleOrganizationUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(r) {
		s.renderProfile(w, r, http.StatusForbidden, "Invalid form token, please try again.", "")
		return
	}
	sess, _ := session.FromContext(r.Context())

	port, _ := strconv.Atoi(r.PostFormValue("smtp_port"))
	org := api.Organization{
		Name:             r.PostFormValue("name"),
		LogoURL:          r.PostFormValue("logo_url"),
		SMTPHost:         r.PostFormValue("smtp_host"),
		SMTPPort:         port,
		SMTPUser:         r.PostFormValue("smtp_user"),
		SMTPPassword:     r.PostFormValue("smtp_password"),
		SMTPUseTLS:       r.PostFormValue("smtp_use_tls") != "",
		SMTPUseSSL:       r.PostFormValue("smtp_use_ssl") != "",
		DefaultFromEmail: r.PostFormValue("default_from_email"),
	}
	if err := s.api.UpdateOrganization(r.Context(), sess.Token, org); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderProfile(w, r, http.StatusBadRequest, validationMessage(err, "Could not save the organization settings."), "")
		return
	}
	_ = audit.LogEvent(r.Context(), "organization.updated", nil)
	s.renderProfile(w, r, http.StatusOK, "", "Organization settings saved.")
}

// validationMessage surfaces a backend validation detail, or the fallback for
// anything else.
func validationMessage(err error, fallback string) string {
	var verr *api.ValidationError
	if errors.As(err, &verr) {
		return verr.Detail
	}
	return fallback
}
