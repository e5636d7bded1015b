// Package guard gates route transitions on authentication state. It is the
// caller-facing edge of the client: UI layers ask it where a navigation
// should actually land.
package guard

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"chatlink/internal/store"
)

// LoginRoute is where unauthenticated navigations get redirected.
const LoginRoute = "/login"

// publicRoutes need no signed-in user. Everything else does.
var publicRoutes = map[string]bool{
	"/":         true,
	"/login":    true,
	"/register": true,
}

// routes is the full route table of the app.
var routes = []string{
	"/",
	"/login",
	"/register",
	"/chat",
	"/call",
	"/setting/*",
	"/community",
	"/community/:userId",
	"/account",
	"/voice",
}

// IdentityRefresher re-fetches the current user when the guard finds none.
// The auth session implements it.
type IdentityRefresher interface {
	GetCurrentUser(ctx context.Context)
}

type Guard struct {
	auth   IdentityRefresher
	state  *store.Store
	logger *zap.Logger
}

func New(auth IdentityRefresher, state *store.Store, logger *zap.Logger) *Guard {
	return &Guard{auth: auth, state: state, logger: logger}
}

// Known reports whether path matches the route table.
func Known(path string) bool {
	for _, route := range routes {
		if matches(route, path) {
			return true
		}
	}
	return false
}

func matches(route, path string) bool {
	switch {
	case strings.HasSuffix(route, "/*"):
		prefix := strings.TrimSuffix(route, "*")
		return strings.HasPrefix(path, prefix) && len(path) > len(prefix)
	case strings.Contains(route, ":"):
		prefix := route[:strings.Index(route, ":")]
		return strings.HasPrefix(path, prefix) && len(path) > len(prefix) &&
			!strings.Contains(path[len(prefix):], "/")
	default:
		return route == path
	}
}

// RequiresAuth reports whether path needs a signed-in user.
func RequiresAuth(path string) bool {
	return !publicRoutes[path]
}

// Resolve decides where a navigation to target should land. When no user is
// loaded yet it fetches the current user first, so a page reload with a
// valid token does not bounce to login. The redirecting flag is up for the
// whole decision.
func (g *Guard) Resolve(ctx context.Context, target string) string {
	g.state.SetRedirecting(true)
	defer g.state.SetRedirecting(false)

	if !g.state.IsAuthenticated() {
		g.auth.GetCurrentUser(ctx)
	}

	if RequiresAuth(target) && !g.state.IsAuthenticated() {
		g.logger.Debug("redirecting unauthenticated navigation",
			zap.String("target", target))
		return LoginRoute
	}
	return target
}
