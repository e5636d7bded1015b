// Package store holds the shared client state. All mutation goes through
// methods on Store, grouped by owner: the auth session writes the user group,
// the realtime session writes the chatting group, and the navigation guard
// writes the context flags. Readers get copies, never internal slices.
package store

import (
	"sync"

	"chatlink/pkg/chat"
)

type Store struct {
	mu sync.RWMutex

	// User group, written by the auth session.
	currentUser chat.User
	authError   string

	// Chatting group, written by the realtime session.
	onlineUsers       []chat.User
	conversation      []chat.Message
	historyChat       []chat.HistoryChat
	callRequest       *chat.CallRequest
	inCall            bool
	endOfConversation bool
	currentChannelID  string

	// Context group, written by the navigation guard.
	isRedirecting bool
	isLoading     bool
}

func New() *Store {
	return &Store{}
}

// --- user group ---

func (s *Store) SetCurrentUser(u chat.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = u
}

func (s *Store) ClearCurrentUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = chat.User{}
}

func (s *Store) CurrentUser() chat.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUser
}

// IsAuthenticated mirrors the identity check used by the navigation guard:
// a user is signed in when the fetched profile has an email.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUser.Email != ""
}

func (s *Store) SetAuthError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authError = msg
}

func (s *Store) AuthError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authError
}

// --- chatting group ---

// SetOnlineUsers replaces the presence set. The current user is dropped and
// duplicate userIds collapse to their first occurrence.
func (s *Store) SetOnlineUsers(users []chat.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(users))
	filtered := make([]chat.User, 0, len(users))
	for _, u := range users {
		if u.UserID == "" || u.UserID == s.currentUser.UserID || seen[u.UserID] {
			continue
		}
		seen[u.UserID] = true
		filtered = append(filtered, u)
	}
	s.onlineUsers = filtered
}

func (s *Store) OnlineUsers() []chat.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.User, len(s.onlineUsers))
	copy(out, s.onlineUsers)
	return out
}

// SetConversation replaces the open channel's message buffer.
func (s *Store) SetConversation(messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = append([]chat.Message(nil), messages...)
}

// AppendMessage adds a live message to the buffer. A message whose id is
// already present is ignored, so duplicate delivery is harmless.
func (s *Store) AppendMessage(m chat.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.conversation {
		if existing.ID == m.ID {
			return false
		}
	}
	s.conversation = append(s.conversation, m)
	return true
}

// PrependMessages inserts an older page before the current head. Pagination
// walks backward in time, so the page is expected to be wholly older.
func (s *Store) PrependMessages(page []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make([]chat.Message, 0, len(page)+len(s.conversation))
	merged = append(merged, page...)
	merged = append(merged, s.conversation...)
	s.conversation = merged
}

func (s *Store) Conversation() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Message, len(s.conversation))
	copy(out, s.conversation)
	return out
}

func (s *Store) SetHistory(history []chat.HistoryChat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyChat = append([]chat.HistoryChat(nil), history...)
}

// MarkChannelRead clears the unread flag of one history entry.
func (s *Store) MarkChannelRead(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.historyChat {
		if s.historyChat[i].ID == channelID {
			s.historyChat[i].IsUnread = false
		}
	}
}

func (s *Store) History() []chat.HistoryChat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.HistoryChat, len(s.historyChat))
	copy(out, s.historyChat)
	return out
}

func (s *Store) SetCallRequest(req *chat.CallRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callRequest = req
}

func (s *Store) CallRequest() *chat.CallRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.callRequest == nil {
		return nil
	}
	req := *s.callRequest
	return &req
}

func (s *Store) SetInCall(inCall bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inCall = inCall
}

func (s *Store) InCall() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inCall
}

func (s *Store) SetEndOfConversation(end bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endOfConversation = end
}

func (s *Store) EndOfConversation() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endOfConversation
}

// SetCurrentChannel records the open channel. The conversation buffer and
// the end-of-history marker belong to the previous channel, so both reset.
func (s *Store) SetCurrentChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentChannelID != channelID {
		s.conversation = nil
		s.endOfConversation = false
	}
	s.currentChannelID = channelID
}

func (s *Store) CurrentChannelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentChannelID
}

// --- context group ---

func (s *Store) SetRedirecting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRedirecting = v
}

func (s *Store) IsRedirecting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRedirecting
}

func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLoading = v
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}
