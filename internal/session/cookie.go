package session

import (
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
)

// CookieName is the durable client-side cell holding the bearer token.
const CookieName = "elstudio_session"

// CookieStorage persists the token in an encrypted HttpOnly cookie bound to
// one request/response pair. No MaxAge is set on write, so the cookie lives
// for the browser session, matching the session lifetime in the data model.
type CookieStorage struct {
	codec *securecookie.SecureCookie
	w     http.ResponseWriter
	r     *http.Request
}

// NewCookieStorage binds the codec to a single request/response pair.
func NewCookieStorage(codec *securecookie.SecureCookie, w http.ResponseWriter, r *http.Request) *CookieStorage {
	return &CookieStorage{codec: codec, w: w, r: r}
}

func (c *CookieStorage) Load() (string, bool) {
	ck, err := c.r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	var token string
	if err := c.codec.Decode(CookieName, ck.Value, &token); err != nil {
		return "", false
	}
	if token == "" {
		return "", false
	}
	return token, true
}

func (c *CookieStorage) Save(token string) error {
	encoded, err := c.codec.Encode(CookieName, token)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *CookieStorage) Drop() {
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
