package realtime

import (
	"fmt"

	"go.uber.org/zap"

	"chatlink/internal/notify"
	"chatlink/pkg/chat"
)

// snippetLimit is how much of a message body a notification shows.
const snippetLimit = 20

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLimit {
		return content
	}
	return string(runes[:snippetLimit]) + "..."
}

// handleFrame decodes and applies one inbound frame. Frames are processed in
// arrival order; a frame that fails validation is dropped without touching
// state.
func (s *Session) handleFrame(raw []byte) {
	frame, err := chat.DecodeFrame(raw)
	if err != nil {
		s.logger.Warn("dropping frame", zap.Error(err))
		return
	}

	switch f := frame.(type) {
	case chat.OnlineUsersFrame:
		s.handleOnlineUsers(f)
	case chat.MessageFrame:
		s.handleMessage(f)
	case chat.NewCallFrame:
		s.handleNewCall(f)
	case chat.CancelCallFrame:
		s.state.SetCallRequest(nil)
	case chat.JoinCallFrame:
		s.handleJoinCall(f)
	case chat.ErrorFrame:
		s.notifier.Notify(notify.Notification{
			Title:       "Error",
			Description: f.Message,
		})
	}
}

// handleOnlineUsers replaces the presence set. Everyone in the frame is
// online by definition.
func (s *Session) handleOnlineUsers(f chat.OnlineUsersFrame) {
	users := make([]chat.User, len(f.Users))
	for i, u := range f.Users {
		u.IsActive = true
		users[i] = u
	}
	s.state.SetOnlineUsers(users)
}

// handleMessage appends to the open conversation, or notifies when the
// message belongs to another channel. Either way the conversation list is
// refreshed from the frame, with the open channel forced read.
func (s *Session) handleMessage(f chat.MessageFrame) {
	current := s.state.CurrentChannelID()
	if current != "" && f.Message.ChannelID == current {
		s.state.AppendMessage(f.Message)
	} else {
		s.notifier.Notify(notify.Notification{
			AvatarID:    f.Message.AvatarID,
			Title:       "You have a new message!",
			Description: f.Message.SenderName + ": " + snippet(f.Message.Content),
		})
	}

	s.state.SetHistory(f.History)
	if current != "" {
		s.state.MarkChannelRead(current)
	}
}

func (s *Session) handleNewCall(f chat.NewCallFrame) {
	if f.Caller == nil || f.Channel == nil || f.Option == "" {
		s.notifier.Notify(notify.Notification{
			Title:       "Error",
			Description: "Failed to join call",
		})
		return
	}
	s.state.SetCallRequest(&chat.CallRequest{
		From:    *f.Caller,
		Channel: *f.Channel,
		Option:  f.Option,
	})
}

// handleJoinCall marks the client in-call and opens the call surface. The
// isFromMe flag tells the call page whether the local user initiated the
// call, derived by comparing the pending request's caller to the current
// user.
func (s *Session) handleJoinCall(f chat.JoinCallFrame) {
	if f.ChannelID == "" || f.Option == "" {
		s.notifier.Notify(notify.Notification{
			Title:       "Error",
			Description: "Failed to join call",
		})
		return
	}

	isFromMe := false
	if req := s.state.CallRequest(); req != nil {
		isFromMe = req.From.ID == s.state.CurrentUser().UserID
	}

	s.state.SetInCall(true)
	s.launcher.OpenCall(fmt.Sprintf("/call?channel_id=%s&option=%s&isFromMe=%t",
		f.ChannelID, f.Option, isFromMe))
}
