package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"chatlink/internal/store"
	"chatlink/pkg/chat"
)

// fakeRefresher optionally installs a user when asked, standing in for the
// auth session's current-user fetch.
type fakeRefresher struct {
	state *store.Store
	user  *chat.User
	calls int
}

func (f *fakeRefresher) GetCurrentUser(ctx context.Context) {
	f.calls++
	if f.user != nil {
		f.state.SetCurrentUser(*f.user)
	} else {
		f.state.ClearCurrentUser()
	}
}

func TestResolveRedirectsUnauthenticated(t *testing.T) {
	state := store.New()
	refresher := &fakeRefresher{state: state}
	g := New(refresher, state, zap.NewNop())

	assert.Equal(t, LoginRoute, g.Resolve(context.Background(), "/chat"))
	assert.Equal(t, 1, refresher.calls)
}

func TestResolveAllowsPublicRoutes(t *testing.T) {
	state := store.New()
	g := New(&fakeRefresher{state: state}, state, zap.NewNop())

	for _, route := range []string{"/", "/login", "/register"} {
		assert.Equal(t, route, g.Resolve(context.Background(), route))
	}
}

func TestResolveFetchesUserBeforeDeciding(t *testing.T) {
	state := store.New()
	refresher := &fakeRefresher{
		state: state,
		user:  &chat.User{UserID: "u1", Email: "a@b.com"},
	}
	g := New(refresher, state, zap.NewNop())

	// The fetch succeeds, so the navigation goes through.
	assert.Equal(t, "/chat", g.Resolve(context.Background(), "/chat"))
	assert.Equal(t, 1, refresher.calls)

	// With a user loaded there is nothing to fetch again.
	assert.Equal(t, "/account", g.Resolve(context.Background(), "/account"))
	assert.Equal(t, 1, refresher.calls)
}

func TestResolveClearsRedirectingFlag(t *testing.T) {
	state := store.New()
	g := New(&fakeRefresher{state: state}, state, zap.NewNop())

	g.Resolve(context.Background(), "/chat")
	assert.False(t, state.IsRedirecting())
}

func TestRequiresAuth(t *testing.T) {
	assert.False(t, RequiresAuth("/"))
	assert.False(t, RequiresAuth("/login"))
	assert.False(t, RequiresAuth("/register"))
	assert.True(t, RequiresAuth("/chat"))
	assert.True(t, RequiresAuth("/call"))
	assert.True(t, RequiresAuth("/community"))
}

func TestKnown(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/chat", true},
		{"/setting/profile", true},
		{"/setting/", false},
		{"/community", true},
		{"/community/u123", true},
		{"/community/u123/extra", false},
		{"/voice", true},
		{"/nope", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Known(tt.path), tt.path)
	}
}
