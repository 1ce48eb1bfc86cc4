// Package guard decides whether a screen may render for the current session.
// The decision is a pure function of the access policy and the caller's role
// set; it is recomputed on every guarded render, never cached.
package guard

import "strings"

// Screen identifiers used as policy keys.
const (
	ScreenLogin              = "login"
	ScreenForgotPassword     = "forgot-password"
	ScreenResetPassword      = "reset-password"
	ScreenChangePassword     = "change-password"
	ScreenDashboard          = "dashboard"
	ScreenProfile            = "profile"
	ScreenEmployeeManagement = "employee-management"
	ScreenEmployeeCreate     = "employee-create"
	ScreenEmployeeEdit       = "employee-edit"
	ScreenInactiveUsers      = "inactive-users"
	ScreenRoleManagement     = "role-management"
)

// RoleSuperAdmin gates every administrative screen.
const RoleSuperAdmin = "super_admin"

// Decision is the outcome of one guarded navigation.
type Decision int

const (
	// Allow renders the screen normally.
	Allow Decision = iota
	// RedirectLogin sends the caller to the login screen. The original
	// destination is not preserved.
	RedirectLogin
	// Deny substitutes a fixed access-denied placeholder for the screen's
	// content. The caller stays on the screen's path; this is a content
	// substitution, not a navigation change.
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// Predicate evaluates a role set.
type Predicate func(roles []string) bool

// Rule gates one screen.
type Rule struct {
	public    bool
	predicate Predicate
}

// Public admits everyone, session or not.
func Public() Rule {
	return Rule{public: true}
}

// Authenticated admits any valid session regardless of roles.
func Authenticated() Rule {
	return Rule{}
}

// Role admits valid sessions that carry the named role.
func Role(name string) Rule {
	name = strings.TrimSpace(strings.ToLower(name))
	return Rule{predicate: func(roles []string) bool {
		for _, r := range roles {
			if r == name {
				return true
			}
		}
		return false
	}}
}

// Subject is everything the guard knows about the caller.
type Subject struct {
	Authenticated bool
	Roles         []string
}

// Policy maps screen identifiers to rules. It is built once at startup and
// read-only afterwards.
type Policy map[string]Rule

// Default is the portal's access policy.
func Default() Policy {
	return Policy{
		ScreenLogin:              Public(),
		ScreenForgotPassword:     Public(),
		ScreenResetPassword:      Public(),
		ScreenChangePassword:     Authenticated(),
		ScreenDashboard:          Authenticated(),
		ScreenProfile:            Authenticated(),
		ScreenEmployeeManagement: Role(RoleSuperAdmin),
		ScreenEmployeeCreate:     Role(RoleSuperAdmin),
		ScreenEmployeeEdit:       Role(RoleSuperAdmin),
		ScreenInactiveUsers:      Role(RoleSuperAdmin),
		ScreenRoleManagement:     Role(RoleSuperAdmin),
	}
}

// Decide resolves one navigation. Screens missing from the policy are treated
// as requiring authentication.
func (p Policy) Decide(screen string, sub Subject) Decision {
	rule, ok := p[screen]
	if !ok {
		rule = Authenticated()
	}
	if rule.public {
		return Allow
	}
	if !sub.Authenticated {
		return RedirectLogin
	}
	if rule.predicate != nil && !rule.predicate(sub.Roles) {
		return Deny
	}
	return Allow
}
