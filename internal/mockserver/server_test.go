package mockserver_test

import (
	"context"
	"net"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatlink/internal/auth"
	"chatlink/internal/mockserver"
	"chatlink/internal/notify"
	"chatlink/internal/realtime"
	"chatlink/internal/rest"
	"chatlink/internal/store"
	"chatlink/internal/tokenstore"
	"chatlink/pkg/chat"
)

// stack is one full client wired against the mock server, the same assembly
// the chatlink binary performs.
type stack struct {
	state   *store.Store
	auth    *auth.Service
	session *realtime.Session
}

func newStack(t *testing.T, baseURL string) *stack {
	t.Helper()
	logger := zap.NewNop()
	state := store.New()

	tokens, err := tokenstore.Open(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)

	client := rest.NewClient(baseURL, "/users", logger)
	notifier := notify.NewLogNotifier(logger)

	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	session := realtime.NewSession(
		realtime.Config{Host: host, Port: port},
		client, tokens, state, notifier,
		&realtime.LogLauncher{Logger: logger},
		logger,
	)
	return &stack{
		state:   state,
		auth:    auth.NewService(client, tokens, state, notifier, logger),
		session: session,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := mockserver.New(filepath.Join(t.TempDir(), "server.db"), "/users", zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func register(t *testing.T, s *stack, first, email string) chat.User {
	t.Helper()
	result := s.auth.Register(context.Background(), auth.RegisterInput{
		FirstName:       first,
		LastName:        "Tester",
		Email:           email,
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
	})
	require.True(t, result.Success, result.ErrorMessage)
	user := s.state.CurrentUser()
	require.NotEmpty(t, user.UserID)
	return user
}

func connect(t *testing.T, s *stack) {
	t.Helper()
	require.NoError(t, s.session.Connect(context.Background()))
	t.Cleanup(s.session.Disconnect)
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice := newStack(t, srv.URL)

	register(t, alice, "Alice", "alice@example.com")
	assert.True(t, alice.auth.IsAuthenticated())

	alice.auth.Logout(context.Background())
	assert.False(t, alice.auth.IsAuthenticated())

	result := alice.auth.Login(context.Background(), "alice@example.com", "wrong")
	assert.False(t, result.Success)
	assert.Equal(t, "Invalid credentials", result.ErrorMessage)

	result = alice.auth.Login(context.Background(), "alice@example.com", "hunter22")
	require.True(t, result.Success)

	// The stored token alone resolves the account, which is what the
	// navigation guard relies on after a restart.
	alice.auth.GetCurrentUser(context.Background())
	assert.Equal(t, "alice@example.com", alice.state.CurrentUser().Email)
}

func TestPresenceAndMessaging(t *testing.T) {
	srv := newTestServer(t)
	alice := newStack(t, srv.URL)
	bob := newStack(t, srv.URL)

	aliceUser := register(t, alice, "Alice", "alice@example.com")
	bobUser := register(t, bob, "Bob", "bob@example.com")

	connect(t, alice)
	connect(t, bob)

	// Presence excludes the local user, so each side sees exactly the peer.
	require.Eventually(t, func() bool {
		online := alice.state.OnlineUsers()
		return len(online) == 1 && online[0].UserID == bobUser.UserID
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		online := bob.state.OnlineUsers()
		return len(online) == 1 && online[0].UserID == aliceUser.UserID
	}, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	detail := alice.session.SelectChannel(ctx, chat.Channel{
		Name:    "pair",
		UserIDs: []string{aliceUser.UserID, bobUser.UserID},
	})
	require.NotEmpty(t, detail.ID)
	assert.Equal(t, chat.ChannelDirect, detail.Type)
	bob.session.OpenChannel(detail.ID)

	require.NoError(t, alice.session.SendMessage(chat.Message{
		ChannelID: detail.ID,
		Content:   "hello bob",
	}))

	// Both ends receive the relayed frame; the open conversation appends it.
	require.Eventually(t, func() bool {
		conv := bob.state.Conversation()
		return len(conv) == 1 && conv[0].Content == "hello bob"
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(alice.state.Conversation()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "Alice Tester", bob.state.Conversation()[0].SenderName)

	// The stored copy pages back out over REST.
	messages := bob.session.GetDetailMessages(ctx, detail.ID, 0)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello bob", messages[0].Content)
	assert.True(t, bob.state.EndOfConversation())

	history := bob.session.GetHistoryMessages(ctx)
	require.Len(t, history, 1)
	assert.Equal(t, "Alice Tester", history[0].Name)
}

func TestCallSignaling(t *testing.T) {
	srv := newTestServer(t)
	alice := newStack(t, srv.URL)
	bob := newStack(t, srv.URL)

	aliceUser := register(t, alice, "Alice", "alice@example.com")
	bobUser := register(t, bob, "Bob", "bob@example.com")

	connect(t, alice)
	connect(t, bob)

	ctx := context.Background()
	detail := alice.session.SelectChannel(ctx, chat.Channel{
		Name:    "pair",
		UserIDs: []string{aliceUser.UserID, bobUser.UserID},
	})
	require.NotEmpty(t, detail.ID)

	require.NoError(t, alice.session.MakeNewCall(detail.ID, "video"))

	// The invitation lands on bob only.
	require.Eventually(t, func() bool {
		req := bob.state.CallRequest()
		return req != nil && req.Channel.ID == detail.ID && req.From.UserID == aliceUser.UserID
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, alice.state.CallRequest())

	// Accepting fans join-call out to every member, caller included.
	require.NoError(t, bob.session.AcceptJoinCall())
	require.Eventually(t, func() bool {
		return alice.state.InCall() && bob.state.InCall()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCallCancel(t *testing.T) {
	srv := newTestServer(t)
	alice := newStack(t, srv.URL)
	bob := newStack(t, srv.URL)

	aliceUser := register(t, alice, "Alice", "alice@example.com")
	bobUser := register(t, bob, "Bob", "bob@example.com")

	connect(t, alice)
	connect(t, bob)

	ctx := context.Background()
	detail := alice.session.SelectChannel(ctx, chat.Channel{
		Name:    "pair",
		UserIDs: []string{aliceUser.UserID, bobUser.UserID},
	})
	require.NotEmpty(t, detail.ID)

	require.NoError(t, alice.session.MakeNewCall(detail.ID, "audio"))
	require.Eventually(t, func() bool {
		return bob.state.CallRequest() != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.session.CancelCall(detail.ID))
	require.Eventually(t, func() bool {
		return bob.state.CallRequest() == nil
	}, 2*time.Second, 10*time.Millisecond)
}
