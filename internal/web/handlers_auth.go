package web

import (
	"errors"
	"net/http"

	"elstudio.app/internal/api"
	"elstudio.app/internal/audit"
	"elstudio.app/internal/session"
)

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	// An already-signed-in visitor has nothing to do here.
	if _, ok := session.FromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", viewData{Title: "Sign in"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(r) {
		s.render(w, r, http.StatusForbidden, "login", viewData{Title: "Sign in", Error: "Invalid form token, please try again."})
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	result, err := s.api.Login(r.Context(), email, password)
	if err != nil {
		// A 401 here is a rejected credential pair, not a dead session;
		// the recovery protocol does not apply to the login call itself.
		status := http.StatusBadGateway
		msg := "Sign-in is temporarily unavailable, please try again."
		var verr *api.ValidationError
		switch {
		case errors.Is(err, api.ErrUnauthorized):
			status = http.StatusUnauthorized
			msg = "Invalid email or password."
		case errors.As(err, &verr):
			status = http.StatusBadRequest
			msg = verr.Detail
		}
		s.render(w, r, status, "login", viewData{Title: "Sign in", Error: msg, Data: email})
		return
	}

	store := s.sessions(w, r)
	if err := store.Establish(result.AccessToken); err != nil {
		s.render(w, r, http.StatusBadGateway, "login", viewData{Title: "Sign in", Error: "Sign-in failed: the issued token was not usable.", Data: email})
		return
	}
	_ = audit.LogEvent(r.Context(), "session.established", map[string]any{"email": email})

	if result.MustChangePassword {
		http.Redirect(w, r, "/change-password", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleLogout clears the session unconditionally. No backend call is made
// and no confirmation is required; a stale or absent session logs out the
// same way a live one does. The CSRF check stops a cross-site POST from
// force-logging-out the user; it does not make logout conditional on session
// state.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.sessions(w, r).Clear()
	_ = audit.LogEvent(r.Context(), "session.cleared", map[string]any{"reason": "logout"})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "forgot_password", viewData{Title: "Forgot password"})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(r) {
		s.render(w, r, http.StatusForbidden, "forgot_password", viewData{Title: "Forgot password", Error: "Invalid form token, please try again."})
		return
	}
	email := r.PostFormValue("email")

	err := s.api.ForgotPassword(r.Context(), email)
	switch {
	case errors.Is(err, api.ErrNotFound):
		s.render(w, r, http.StatusNotFound, "forgot_password", viewData{Title: "Forgot password", Error: "No account exists with this email.", Data: email})
	case err != nil:
		s.render(w, r, http.StatusBadGateway, "forgot_password", viewData{Title: "Forgot password", Error: "Could not send the reset email, please try again.", Data: email})
	default:
		s.render(w, r, http.StatusOK, "forgot_password", viewData{Title: "Forgot password", Notice: "If the account exists, a reset link is on its way."})
	}
}

func (s *Server) handleResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "reset_password", viewData{Title: "Reset password", Data: token})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(r) {
		s.render(w, r, http.StatusForbidden, "reset_password", viewData{Title: "Reset password", Error: "Invalid form token, please try again."})
		return
	}
	token := r.PostFormValue("token")
	newPassword := r.PostFormValue("new_password")
	if newPassword != r.PostFormValue("confirm_password") {
		s.render(w, r, http.StatusBadRequest, "reset_password", viewData{Title: "Reset password", Error: "Passwords do not match.", Data: token})
		return
	}

	if err := s.api.ResetPassword(r.Context(), token, newPassword); err != nil {
		msg := "Could not reset the password, the link may have expired."
		var verr *api.ValidationError
		if errors.As(err, &verr) {
			msg = verr.Detail
		}
		s.render(w, r, http.StatusBadRequest, "reset_password", viewData{Title: "Reset password", Error: msg, Data: token})
		return
	}
	s.render(w, r, http.StatusOK, "login", viewData{Title: "Sign in", Notice: "Password updated. Sign in with your new password."})
}

func (s *Server) handleChangePasswordForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "change_password", viewData{Title: "Change password"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(r) {
		s.render(w, r, http.StatusForbidden, "change_password", viewData{Title: "Change password", Error: "Invalid form token, please try again."})
		return
	}
	sess, _ := session.FromContext(r.Context())
	newPassword := r.PostFormValue("new_password")
	if newPassword != r.PostFormValue("confirm_password") {
		s.render(w, r, http.StatusBadRequest, "change_password", viewData{Title: "Change password", Error: "Passwords do not match."})
		return
	}

	if err := s.api.ChangePasswordOnFirstLogin(r.Context(), sess.Token, newPassword); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		msg := "Could not change the password, please try again."
		var verr *api.ValidationError
		if errors.As(err, &verr) {
			msg = verr.Detail
		}
		s.render(w, r, http.StatusBadRequest, "change_password", viewData{Title: "Change password", Error: msg})
		return
	}
	_ = audit.LogEvent(r.Context(), "password.changed", nil)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
