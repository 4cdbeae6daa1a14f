package client

import (
	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

// LogoutGuard binds a ForceLogout event to the local session teardown:
// clear cached credentials, then navigate to the login page. Navigation
// always happens, even when clearing fails, so the user is never left
// looking logged in after the server pushed a logout.
type LogoutGuard struct {
	ClearCredentials func() error
	Navigate         func(path string)
	LoginPath        string

	log logger.Logger
}

func NewLogoutGuard(clear func() error, navigate func(path string), log logger.Logger) *LogoutGuard {
	return &LogoutGuard{
		ClearCredentials: clear,
		Navigate:         navigate,
		LoginPath:        "/login",
		log:              log,
	}
}

// Bind registers the guard on the client and returns the subscription so the
// owner can detach it.
func (g *LogoutGuard) Bind(c *Client) Subscription {
	return c.On(realtime.EventForceLogout, func(event realtime.Event) {
		logout, ok := event.(realtime.ForceLogoutEvent)
		if !ok {
			return
		}
		g.handle(logout)
	})
}

func (g *LogoutGuard) handle(event realtime.ForceLogoutEvent) {
	g.log.Info("Force logout received", "scope", event.Scope, "reason", event.Reason)

	if g.ClearCredentials != nil {
		if err := g.ClearCredentials(); err != nil {
			g.log.Error("Failed to clear credentials, redirecting anyway", "error", err)
		}
	}

	if g.Navigate != nil {
		g.Navigate(g.LoginPath)
	}
}
