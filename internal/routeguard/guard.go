package routeguard

import (
	"net/http"

	"github.com/mindfulmovement/service-session-go/internal/session"
)

// Decision is the outcome of a guard check.
type Decision int

const (
	Proceed Decision = iota
	RedirectLogin
	RedirectHome
)

// Policy is the static authorization rule for one route. A nil or empty
// AllowedRoles set means any authenticated role when RequiresAuth is set.
type Policy struct {
	RequiresAuth bool
	AllowedRoles []session.Role
}

// Table maps route names to their policies. Defined once at startup and
// never mutated afterwards.
type Table map[string]Policy

// DefaultTable is the application's route policy table.
func DefaultTable() Table {
	return Table{
		"home":          {},
		"explore":       {},
		"auth":          {},
		"about":         {},
		"accessibility": {},
		"dashboard":     {RequiresAuth: true},
		"partner":       {RequiresAuth: true, AllowedRoles: []session.Role{session.RolePartner, session.RoleAdmin}},
		"admin":         {RequiresAuth: true, AllowedRoles: []session.Role{session.RoleAdmin}},
	}
}

// Guard decides navigations synchronously from the session mirror snapshot.
// It trusts the snapshot as of invocation time; no network work happens here.
type Guard struct {
	mirror    *session.Mirror
	loginPath string
	homePath  string
}

func NewGuard(mirror *session.Mirror, loginPath, homePath string) *Guard {
	return &Guard{mirror: mirror, loginPath: loginPath, homePath: homePath}
}

// Decide applies the policy to the current session snapshot.
func (g *Guard) Decide(p Policy) Decision {
	rec := g.mirror.Current()
	if p.RequiresAuth && rec == nil {
		return RedirectLogin
	}
	if len(p.AllowedRoles) > 0 {
		if rec == nil {
			return RedirectHome
		}
		for _, role := range p.AllowedRoles {
			if rec.Role == role {
				return Proceed
			}
		}
		return RedirectHome
	}
	return Proceed
}

// Middleware enforces the policy before the wrapped handler runs.
func (g *Guard) Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch g.Decide(p) {
			case RedirectLogin:
				http.Redirect(w, r, g.loginPath, http.StatusFound)
			case RedirectHome:
				http.Redirect(w, r, g.homePath, http.StatusFound)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
