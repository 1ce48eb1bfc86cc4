package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken indicates a token string that cannot be decoded into
// claims. Establish rejects such tokens without touching a prior session.
var ErrMalformedToken = errors.New("session: malformed token")

// Claims is the decoded view of a bearer token: who the user is, which roles
// the backend granted, and when the token stops being valid.
type Claims struct {
	Subject   string
	Roles     []string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// DecodeClaims decodes a token structurally, without signature verification:
// the portal never holds the backend's signing secret, it only reads what the
// backend put into the token. Expiry is deliberately NOT checked here — a
// well-formed but expired token still decodes, so "bad token" and "token
// later expired" stay distinguishable.
func DecodeClaims(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrMalformedToken
	}
	var tc tokenClaims
	if _, _, err := parser.ParseUnverified(token, &tc); err != nil {
		return Claims{}, ErrMalformedToken
	}
	if strings.TrimSpace(tc.Subject) == "" || tc.ExpiresAt == nil {
		return Claims{}, ErrMalformedToken
	}
	return Claims{
		Subject:   tc.Subject,
		Roles:     normalizeRoles(tc.Roles),
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}

// HasRole reports whether the claims carry the given role.
func (c Claims) HasRole(role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func normalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
