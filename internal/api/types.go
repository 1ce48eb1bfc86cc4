package api

// Wire formats follow the HR backend's JSON payloads. The portal treats them
// as opaque display/edit material; none of these feed back into the session.

// LoginResult is the response to POST /auth/login.
type LoginResult struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	MustChangePassword bool   `json:"must_change_password"`
}

// Profile is the response to GET /auth/me.
type Profile struct {
	ID         int      `json:"id"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Email      string   `json:"email"`
	BirthDate  string   `json:"birth_date,omitempty"`
	Roles      []string `json:"roles"`
	Language   string   `json:"language"`
	DateFormat string   `json:"date_format"`
	Theme      string   `json:"theme"`
}

// Role is a named role with its backend identifier.
type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// User is an employee account as listed under /users.
type User struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	BirthDate string `json:"birth_date,omitempty"`
	IsActive  bool   `json:"is_active"`
	Roles     []Role `json:"roles"`
}

// CreateUser is the POST /auth/register payload.
type CreateUser struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	BirthDate string   `json:"birth_date"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Roles     []string `json:"roles"`
}

// UpdateUser is the administrative PUT /users/{id} payload.
type UpdateUser struct {
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Email      string   `json:"email"`
	BirthDate  string   `json:"birth_date,omitempty"`
	Language   string   `json:"language,omitempty"`
	DateFormat string   `json:"date_format,omitempty"`
	Theme      string   `json:"theme,omitempty"`
	IsActive   *bool    `json:"is_active,omitempty"`
	Password   string   `json:"password,omitempty"`
	Roles      []string `json:"roles"`
}

// UpdateProfile is the self-service PUT /users/me payload.
type UpdateProfile struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	BirthDate  string `json:"birth_date,omitempty"`
	Email      string `json:"email"`
	Password   string `json:"password,omitempty"`
	Language   string `json:"language,omitempty"`
	DateFormat string `json:"date_format,omitempty"`
	Theme      string `json:"theme,omitempty"`
}

// Organization holds the org profile and SMTP settings.
type Organization struct {
	ID               int    `json:"id,omitempty"`
	Name             string `json:"name"`
	LogoURL          string `json:"logo_url,omitempty"`
	SMTPHost         string `json:"smtp_host,omitempty"`
	SMTPPort         int    `json:"smtp_port,omitempty"`
	SMTPUser         string `json:"smtp_user,omitempty"`
	SMTPPassword     string `json:"smtp_password,omitempty"`
	SMTPUseTLS       bool   `json:"smtp_use_tls"`
	SMTPUseSSL       bool   `json:"smtp_use_ssl"`
	DefaultFromEmail string `json:"default_from_email,omitempty"`
}
