package realtime

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatlink/internal/notify"
	"chatlink/internal/rest"
	"chatlink/internal/store"
	"chatlink/internal/tokenstore"
	"chatlink/pkg/chat"
)

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []notify.Notification
}

func (r *recordingNotifier) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notifications...)
}

type recordingLauncher struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingLauncher) OpenCall(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
}

func (r *recordingLauncher) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

type dispatchFixture struct {
	session  *Session
	state    *store.Store
	notifier *recordingNotifier
	launcher *recordingLauncher
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	tokens, err := tokenstore.Open(":memory:")
	require.NoError(t, err)

	state := store.New()
	notifier := &recordingNotifier{}
	launcher := &recordingLauncher{}
	client := rest.NewClient("http://localhost:0", "/users", zap.NewNop())
	session := NewSession(Config{Host: "localhost", Port: "0"}, client, tokens, state, notifier, launcher, zap.NewNop())

	return &dispatchFixture{session: session, state: state, notifier: notifier, launcher: launcher}
}

func TestOnlineUsersFrameReplacesPresence(t *testing.T) {
	f := newDispatchFixture(t)
	f.state.SetCurrentUser(chat.User{UserID: "me", Email: "me@example.com"})
	f.state.SetOnlineUsers([]chat.User{{UserID: "stale"}})

	f.session.handleFrame([]byte(`{"type":"online-users","data":[
		{"userId":"u1","email":"a@b.com"},
		{"userId":"me","email":"me@example.com"},
		{"userId":"u1","email":"a@b.com"}
	]}`))

	users := f.state.OnlineUsers()
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].UserID)
	assert.True(t, users[0].IsActive)
}

func TestMessageFrameAppendsToOpenChannel(t *testing.T) {
	f := newDispatchFixture(t)
	f.session.OpenChannel("c1")

	raw := []byte(`{"type":"message","data":{
		"message":{"_id":"m1","content":"hi","senderId":"u1","channelId":"c1"},
		"history":[{"_id":"c1","isUnread":true},{"_id":"c2","isUnread":true}]
	}}`)
	f.session.handleFrame(raw)

	conv := f.state.Conversation()
	require.Len(t, conv, 1)
	assert.Equal(t, "m1", conv[0].ID)
	assert.Empty(t, f.notifier.all())

	// Duplicate delivery is a no-op.
	f.session.handleFrame(raw)
	assert.Len(t, f.state.Conversation(), 1)

	// The history always comes from the frame, with the open channel read.
	history := f.state.History()
	require.Len(t, history, 2)
	assert.False(t, history[0].IsUnread)
	assert.True(t, history[1].IsUnread)
}

func TestMessageFrameForOtherChannelNotifies(t *testing.T) {
	f := newDispatchFixture(t)
	f.session.OpenChannel("c1")

	f.session.handleFrame([]byte(`{"type":"message","data":{
		"message":{"_id":"m1","content":"short","senderId":"u2","senderName":"Bob","channelId":"c2"},
		"history":[]
	}}`))

	assert.Empty(t, f.state.Conversation())
	notifications := f.notifier.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, "You have a new message!", notifications[0].Title)
	assert.Equal(t, "Bob: short", notifications[0].Description)
}

func TestMessageNotificationTruncatesLongContent(t *testing.T) {
	f := newDispatchFixture(t)
	f.session.OpenChannel("c1")

	long := strings.Repeat("a", 25)
	f.session.handleFrame([]byte(`{"type":"message","data":{
		"message":{"_id":"m1","content":"` + long + `","senderName":"Bob","channelId":"c2"},
		"history":[]
	}}`))

	notifications := f.notifier.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, "Bob: "+strings.Repeat("a", 20)+"...", notifications[0].Description)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short"))
	assert.Equal(t, strings.Repeat("x", 20), snippet(strings.Repeat("x", 20)))
	assert.Equal(t, strings.Repeat("x", 20)+"...", snippet(strings.Repeat("x", 21)))
}

func TestNewCallFrameSetsRequest(t *testing.T) {
	f := newDispatchFixture(t)

	f.session.handleFrame([]byte(`{"type":"new-call","data":{
		"caller":{"_id":"db1","userId":"u2"},
		"channel":{"_id":"c1","name":"duo"},
		"option":"video"
	}}`))

	req := f.state.CallRequest()
	require.NotNil(t, req)
	assert.Equal(t, "u2", req.From.UserID)
	assert.Equal(t, "video", req.Option)
}

func TestNewCallFrameMissingFieldsDropped(t *testing.T) {
	f := newDispatchFixture(t)

	f.session.handleFrame([]byte(`{"type":"new-call","data":{"caller":{"userId":"u2"},"option":"video"}}`))

	assert.Nil(t, f.state.CallRequest())
	notifications := f.notifier.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, "Failed to join call", notifications[0].Description)
}

func TestCancelCallFrameClearsRequest(t *testing.T) {
	f := newDispatchFixture(t)
	f.state.SetCallRequest(&chat.CallRequest{Option: "video"})

	f.session.handleFrame([]byte(`{"type":"cancel-call"}`))

	assert.Nil(t, f.state.CallRequest())

	// Idempotent on an empty request.
	f.session.handleFrame([]byte(`{"type":"cancel-call"}`))
	assert.Nil(t, f.state.CallRequest())
}

func TestJoinCallFrameOpensCall(t *testing.T) {
	f := newDispatchFixture(t)
	f.state.SetCurrentUser(chat.User{UserID: "me", Email: "me@example.com"})
	f.state.SetCallRequest(&chat.CallRequest{From: chat.User{ID: "me"}, Option: "video"})

	f.session.handleFrame([]byte(`{"type":"join-call","data":{"channelId":"c1","option":"video"}}`))

	assert.True(t, f.state.InCall())
	urls := f.launcher.all()
	require.Len(t, urls, 1)
	assert.Equal(t, "/call?channel_id=c1&option=video&isFromMe=true", urls[0])
}

func TestJoinCallFrameFromPeer(t *testing.T) {
	f := newDispatchFixture(t)
	f.state.SetCurrentUser(chat.User{UserID: "me", Email: "me@example.com"})
	f.state.SetCallRequest(&chat.CallRequest{From: chat.User{ID: "u2"}, Option: "audio"})

	f.session.handleFrame([]byte(`{"type":"join-call","data":{"channelId":"c1","option":"audio"}}`))

	urls := f.launcher.all()
	require.Len(t, urls, 1)
	assert.Equal(t, "/call?channel_id=c1&option=audio&isFromMe=false", urls[0])
}

func TestJoinCallFrameMissingFields(t *testing.T) {
	f := newDispatchFixture(t)

	f.session.handleFrame([]byte(`{"type":"join-call","data":{"option":"video"}}`))

	assert.False(t, f.state.InCall())
	assert.Empty(t, f.launcher.all())
	require.Len(t, f.notifier.all(), 1)
}

func TestErrorFrameNotifies(t *testing.T) {
	f := newDispatchFixture(t)

	f.session.handleFrame([]byte(`{"type":"error","data":{"message":"token expired"}}`))

	notifications := f.notifier.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, "Error", notifications[0].Title)
	assert.Equal(t, "token expired", notifications[0].Description)
}

func TestUnknownFrameDroppedSilently(t *testing.T) {
	f := newDispatchFixture(t)

	f.session.handleFrame([]byte(`{"type":"typing","data":{}}`))
	f.session.handleFrame([]byte(`not json`))

	assert.Empty(t, f.notifier.all())
	assert.Empty(t, f.state.Conversation())
}
