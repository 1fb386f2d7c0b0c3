// Package gate enforces the session-gated routing policy.
//
// Edge runs on every request and only checks that a session cookie is
// present on protected paths. Layout runs at the entry point of each page
// group and asks the session oracle for a validated session. The two checks
// overlap on purpose: Edge avoids rendering a protected shell for visitors
// with no cookie at all, Layout is the security boundary.
package gate

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/launchkit-dev/launchkit/internal/routes"
	"github.com/launchkit-dev/launchkit/internal/session"
)

// PathnameHeader carries the request path to downstream handlers
const PathnameHeader = "X-Pathname"

const (
	pathnameKey = "pathname"
	sessionKey  = "session"
)

// Policy holds the redirect targets and the oracle failure policy
type Policy struct {
	LoginPath   string
	LandingPath string

	// FailOpen renders protected pages without a session when the oracle
	// is unavailable instead of redirecting to LoginPath.
	FailOpen bool
}

// Gate binds the route table and session oracle
type Gate struct {
	table  *routes.Table
	oracle session.Oracle
	policy Policy
	logger zerolog.Logger
}

// New creates a Gate. table is shared, not copied.
func New(table *routes.Table, oracle session.Oracle, policy Policy, logger zerolog.Logger) *Gate {
	return &Gate{
		table:  table,
		oracle: oracle,
		policy: policy,
		logger: logger,
	}
}

// Edge is the request interceptor installed ahead of all routes
func (g *Gate) Edge() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		c.Request.Header.Set(PathnameHeader, path)
		c.Set(pathnameKey, path)

		if g.table.Classify(path) == routes.Protected && !g.oracle.HasSessionCookie(c.Request.Header) {
			g.logger.Debug().Str("path", path).Err(session.ErrMissingCookie).Msg("Edge redirect to login")
			c.Redirect(http.StatusSeeOther, g.policy.LoginPath)
			c.Abort()
			return
		}

		c.Next()
	}
}

// Layout is the render-time gate installed on each page group
func (g *Gate) Layout() gin.HandlerFunc {
	return func(c *gin.Context) {
		class := g.table.Classify(c.Request.URL.Path)

		var (
			resolved *session.Session
			err      error
		)
		if class != routes.Public {
			resolved, err = g.oracle.ResolveSession(c.Request.Context(), c.Request.Header)
			if err != nil {
				g.logger.Warn().
					Err(err).
					Str("path", c.Request.URL.Path).
					Bool("fail_open", g.policy.FailOpen).
					Msg("Session lookup failed")
			}
		}

		d := Decide(class, resolved, err, g.policy)
		if d.Action == Redirect {
			c.Redirect(http.StatusSeeOther, d.Location)
			c.Abort()
			return
		}

		if d.Session != nil {
			c.Set(sessionKey, d.Session)
		}
		c.Next()
	}
}

// Action is the outcome of a render-time decision
type Action int

const (
	Render Action = iota
	Redirect
)

func (a Action) String() string {
	if a == Redirect {
		return "redirect"
	}
	return "render"
}

// Decision is what the render-time gate does for a request
type Decision struct {
	Action   Action
	Location string           // set when Action is Redirect
	Session  *session.Session // set when rendering with a session
}

// Decide applies the render-time decision table. A non-nil lookupErr means
// the oracle could not answer; invalid sessions arrive as a nil session with
// no error.
func Decide(class routes.Class, s *session.Session, lookupErr error, p Policy) Decision {
	switch class {
	case routes.AuthOnly:
		if s != nil {
			return Decision{Action: Redirect, Location: p.LandingPath}
		}
		return Decision{Action: Render}

	case routes.Protected:
		if s != nil {
			return Decision{Action: Render, Session: s}
		}
		if lookupErr != nil && p.FailOpen {
			return Decision{Action: Render}
		}
		return Decision{Action: Redirect, Location: p.LoginPath}

	default:
		return Decision{Action: Render}
	}
}

// SessionFrom returns the session resolved by Layout, if any
func SessionFrom(c *gin.Context) (*session.Session, bool) {
	v, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok && s != nil
}

// PathnameFrom returns the path recorded by Edge
func PathnameFrom(c *gin.Context) string {
	return c.GetString(pathnameKey)
}
