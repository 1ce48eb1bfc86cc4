package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/securecookie"

	"elstudio.app/internal/api"
	"elstudio.app/internal/session"
)

func newTestCodec() *securecookie.SecureCookie {
	hashKey := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	blockKey := []byte("0123456789abcdef0123456789abcdef")
	return securecookie.New(hashKey, blockKey)
}

func newPortal(t *testing.T, backend http.Handler) (*Server, http.Handler) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	client, err := api.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	portal := New(client, newTestCodec(), "test")
	return portal, portal.Handler()
}

func mintToken(t *testing.T, sub string, roles []string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "roles": roles, "exp": exp.Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func sessionCookie(t *testing.T, portal *Server, token string) *http.Cookie {
	t.Helper()
	encoded, err := portal.codec.Encode(session.CookieName, token)
	if err != nil {
		t.Fatalf("encode session cookie: %v", err)
	}
	return &http.Cookie{Name: session.CookieName, Value: encoded}
}

func csrfPair(t *testing.T, portal *Server) (*http.Cookie, string) {
	t.Helper()
	token := "csrf-test-token"
	encoded, err := portal.codec.Encode(csrfCookieName, token)
	if err != nil {
		t.Fatalf("encode csrf cookie: %v", err)
	}
	return &http.Cookie{Name: csrfCookieName, Value: encoded}, token
}

func postForm(path string, form url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// meBackend serves a minimal /auth/me for screens that load the profile.
func meBackend() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Profile{ID: 1, FirstName: "Ada", Roles: []string{"employee"}})
	})
	return mux
}

func TestAnonymousVisitorIsRedirectedToLogin(t *testing.T) {
	_, handler := newPortal(t, meBackend())

	for _, path := range []string{"/dashboard", "/profile", "/employees", "/roles", "/change-password"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("GET %s: status %d, want %d", path, rec.Code, http.StatusSeeOther)
		}
		if loc := rec.Header().Get("Location"); loc != "/login" {
			t.Fatalf("GET %s: redirected to %q, want /login", path, loc)
		}
	}
}

func TestAuthenticatedVisitorSeesDashboard(t *testing.T) {
	portal, handler := newPortal(t, meBackend())
	token := mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(sessionCookie(t, portal, token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Welcome, Ada") {
		t.Fatalf("dashboard body missing greeting:\n%s", rec.Body.String())
	}
}

func TestMissingRoleIsDeniedInPlace(t *testing.T) {
	portal, handler := newPortal(t, meBackend())
	token := mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/employees", nil)
	req.AddCookie(sessionCookie(t, portal, token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "" {
		t.Fatalf("denial must not redirect, got Location %q", loc)
	}
	if !strings.Contains(rec.Body.String(), "Access denied") {
		t.Fatalf("body missing denial placeholder:\n%s", rec.Body.String())
	}
}

func TestExpiredSessionReadsAsAnonymous(t *testing.T) {
	portal, handler := newPortal(t, meBackend())
	token := mintToken(t, "1", []string{"super_admin"}, time.Now().Add(-time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/employees", nil)
	req.AddCookie(sessionCookie(t, portal, token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expired session: got %d -> %q, want 303 -> /login", rec.Code, rec.Header().Get("Location"))
	}
}

func TestBackendUnauthorizedClearsSessionAndRedirectsOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
	})
	portal, handler := newPortal(t, mux)
	token := mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(sessionCookie(t, portal, token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("got %d -> %q, want 303 -> /login", rec.Code, rec.Header().Get("Location"))
	}

	cleared := 0
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared++
		}
	}
	if cleared != 1 {
		t.Fatalf("session cookie cleared %d times, want exactly 1", cleared)
	}
}

func TestLoginEstablishesSessionAndLandsOnDashboard(t *testing.T) {
	token := ""
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.LoginResult{AccessToken: token, TokenType: "bearer"})
	})
	portal, handler := newPortal(t, mux)
	token = mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))

	csrfCookie, csrf := csrfPair(t, portal)
	req := postForm("/login", url.Values{
		"csrf_token": {csrf},
		"email":      {"ada@example.com"},
		"password":   {"secret"},
	}, csrfCookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("got %d -> %q, want 303 -> /dashboard", rec.Code, rec.Header().Get("Location"))
	}

	var persisted string
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			if err := portal.codec.Decode(session.CookieName, c.Value, &persisted); err != nil {
				t.Fatalf("decode session cookie: %v", err)
			}
		}
	}
	if persisted != token {
		t.Fatalf("persisted token mismatch: got %q", persisted)
	}
}

func TestLoginHonorsMustChangePassword(t *testing.T) {
	var token string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.LoginResult{AccessToken: token, TokenType: "bearer", MustChangePassword: true})
	})
	portal, handler := newPortal(t, mux)
	token = mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))

	csrfCookie, csrf := csrfPair(t, portal)
	req := postForm("/login", url.Values{
		"csrf_token": {csrf},
		"email":      {"ada@example.com"},
		"password":   {"initial"},
	}, csrfCookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/change-password" {
		t.Fatalf("got %d -> %q, want 303 -> /change-password", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLoginRejectionStaysOnLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid credentials"})
	})
	portal, handler := newPortal(t, mux)

	csrfCookie, csrf := csrfPair(t, portal)
	req := postForm("/login", url.Values{
		"csrf_token": {csrf},
		"email":      {"ada@example.com"},
		"password":   {"wrong"},
	}, csrfCookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid email or password") {
		t.Fatalf("body missing rejection message:\n%s", rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			t.Fatal("rejected login must not set a session cookie")
		}
	}
}

func TestLoginWithoutCSRFTokenIsRejected(t *testing.T) {
	_, handler := newPortal(t, meBackend())

	req := postForm("/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"secret"},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rec.Code)
	}
}

func TestLogoutClearsUnconditionally(t *testing.T) {
	portal, handler := newPortal(t, meBackend())
	csrfCookie, csrf := csrfPair(t, portal)

	// No session cookie at all: logout still lands on login.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm("/logout", url.Values{"csrf_token": {csrf}}, csrfCookie))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("got %d -> %q, want 303 -> /login", rec.Code, rec.Header().Get("Location"))
	}

	// With a live session: the cookie is deleted.
	token := mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))
	req := postForm("/logout", url.Values{"csrf_token": {csrf}}, csrfCookie, sessionCookie(t, portal, token))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("logout did not delete the session cookie")
	}
}

func TestLogoutWithoutCSRFTokenLeavesSession(t *testing.T) {
	portal, handler := newPortal(t, meBackend())
	token := mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))

	req := postForm("/logout", url.Values{}, sessionCookie(t, portal, token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			t.Fatal("cross-site logout must not clear the session")
		}
	}
}

func TestRootRoutesByAuthentication(t *testing.T) {
	portal, handler := newPortal(t, meBackend())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("anonymous root: got %q, want /login", loc)
	}

	token := mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, portal, token))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("authenticated root: got %q, want /dashboard", loc)
	}
}

func TestLoginPageBouncesAuthenticatedVisitor(t *testing.T) {
	portal, handler := newPortal(t, meBackend())
	token := mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(sessionCookie(t, portal, token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("got %d -> %q, want 303 -> /dashboard", rec.Code, rec.Header().Get("Location"))
	}
}

func TestSuperAdminSeesEmployeeList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Profile{ID: 1, FirstName: "Root", Roles: []string{"super_admin"}, DateFormat: "DD/MM/YYYY"})
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]api.User{
			{ID: 2, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", BirthDate: "1990-12-10", IsActive: true},
			{ID: 3, FirstName: "Gone", LastName: "User", Email: "gone@example.com", IsActive: false},
		})
	})
	portal, handler := newPortal(t, mux)
	token := mintToken(t, "1", []string{"super_admin"}, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/employees", nil)
	req.AddCookie(sessionCookie(t, portal, token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Ada Lovelace") {
		t.Fatalf("active employee missing:\n%s", body)
	}
	if strings.Contains(body, "gone@example.com") {
		t.Fatal("inactive user leaked into the active list")
	}
	if !strings.Contains(body, "10/12/1990") {
		t.Fatalf("birth date not formatted per preference:\n%s", body)
	}
}

func TestDashboardShowsSessionAndChrome(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Profile{ID: 77, FirstName: "Root", LastName: "Admin", Roles: []string{"super_admin"}, DateFormat: "DD/MM/YYYY"})
	})
	mux.HandleFunc("/organization", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Organization{ID: 1, Name: "Acme HR"})
	})
	portal, handler := newPortal(t, mux)

	exp := time.Now().Add(time.Hour)
	token := mintToken(t, "user-77", []string{"super_admin"}, exp)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(sessionCookie(t, portal, token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"user-77",
		"super_admin",
		time.Unix(exp.Unix(), 0).Format("2006-01-02 15:04"),
		"Acme HR",
		"Root Admin",
		formatDate(time.Now().Format("2006-01-02"), "DD/MM/YYYY"),
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("dashboard missing %q:\n%s", want, body)
		}
	}
}

func TestProfileUpdateSendsBirthDate(t *testing.T) {
	var got api.UpdateProfile
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Profile{ID: 1, FirstName: "Ada", BirthDate: "1990-12-10", Roles: []string{"employee"}})
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode update: %v", err)
		}
		w.Write([]byte("{}"))
	})
	portal, handler := newPortal(t, mux)
	token := mintToken(t, "1", []string{"employee"}, time.Now().Add(time.Hour))

	csrfCookie, csrf := csrfPair(t, portal)
	req := postForm("/profile", url.Values{
		"csrf_token": {csrf},
		"first_name": {"Ada"},
		"last_name":  {"Lovelace"},
		"email":      {"ada@example.com"},
		"birth_date": {"1991-01-02"},
	}, csrfCookie, sessionCookie(t, portal, token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if got.BirthDate != "1991-01-02" {
		t.Fatalf("birth_date not forwarded: %+v", got)
	}
}

func TestLoginWhileBackendDownRendersUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := api.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	srv.Close() // nothing is listening anymore
	portal := New(client, newTestCodec(), "test")
	handler := portal.Handler()

	csrfCookie, csrf := csrfPair(t, portal)
	req := postForm("/login", url.Values{
		"csrf_token": {csrf},
		"email":      {"ada@example.com"},
		"password":   {"secret"},
	}, csrfCookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "temporarily unavailable") {
		t.Fatalf("body missing unavailable message:\n%s", rec.Body.String())
	}
}

func TestHealthzIsPublic(t *testing.T) {
	_, handler := newPortal(t, meBackend())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
