package web

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	csrfCookieName = "elstudio_csrf"
	csrfFieldName  = "csrf_token"
	csrfCookieLife = time.Hour
)

// csrfToken returns the request's CSRF token, minting and setting the cookie
// when absent. Forms embed the raw token; the cookie carries it encrypted, so
// a valid POST needs both halves (double-submit).
func (s *Server) csrfToken(w http.ResponseWriter, r *http.Request) string {
	if ck, err := r.Cookie(csrfCookieName); err == nil {
		var token string
		if err := s.codec.Decode(csrfCookieName, ck.Value, &token); err == nil && token != "" {
			return token
		}
	}

	token := uuid.NewString()
	encoded, err := s.codec.Encode(csrfCookieName, token)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  time.Now().Add(csrfCookieLife),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// checkCSRF compares the posted hidden field against the cookie token.
func (s *Server) checkCSRF(r *http.Request) bool {
	ck, err := r.Cookie(csrfCookieName)
	if err != nil {
		return false
	}
	var token string
	if err := s.codec.Decode(csrfCookieName, ck.Value, &token); err != nil || token == "" {
		return false
	}
	posted := r.PostFormValue(csrfFieldName)
	return subtle.ConstantTimeCompare([]byte(token), []byte(posted)) == 1
}
