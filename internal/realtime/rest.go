package realtime

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chatlink/internal/notify"
	"chatlink/internal/rest"
	"chatlink/pkg/chat"
)

// REST-backed helpers around the channel/message/user endpoints. Failures
// are swallowed into a notification and a zero-value result; nothing here
// propagates transport errors to the caller.

func (s *Session) notifyError(description string) {
	s.notifier.Notify(notify.Notification{Title: "Error", Description: description})
}

// GetOrCreateChannel upserts a channel keyed by its id, name and members and
// returns the server's record.
func (s *Session) GetOrCreateChannel(ctx context.Context, channel chat.Channel) chat.ChannelDetail {
	var detail chat.ChannelDetail
	err := s.client.Post(ctx, "/channel", map[string]any{
		"channelId": channel.ID,
		"name":      channel.Name,
		"userIds":   channel.UserIDs,
	}, &detail)
	if err != nil {
		s.logger.Warn("channel upsert failed", zap.Error(err))
		s.notifyError("Failed to create channel")
		return chat.ChannelDetail{}
	}
	return detail
}

func (s *Session) GetDetailChannel(ctx context.Context, channelID string) chat.ChannelDetail {
	var detail chat.ChannelDetail
	if err := s.client.Get(ctx, "/channel/"+channelID, &detail); err != nil {
		description := "Failed to get channel"
		var apiErr *rest.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			description = apiErr.Message
		}
		s.notifyError(description)
		return chat.ChannelDetail{}
	}
	return detail
}

type messagesPage struct {
	Messages    []chat.Message `json:"messages"`
	IsEndOfList bool           `json:"isEndOfList"`
}

// GetDetailMessages loads one page of a channel's history. Page 0 replaces
// the conversation; later pages prepend older messages. Once the server has
// reported the end of the list, further back-pagination is a no-op without a
// network call.
func (s *Session) GetDetailMessages(ctx context.Context, channelID string, index int) []chat.Message {
	if index != 0 && s.state.EndOfConversation() {
		return nil
	}

	var page messagesPage
	path := fmt.Sprintf("/message/%s?index=%d", channelID, index)
	if err := s.client.Get(ctx, path, &page); err != nil {
		s.logger.Warn("message fetch failed", zap.Error(err))
		s.notifyError("Failed to get messages")
		return nil
	}

	if page.Messages != nil {
		if index == 0 {
			s.state.SetConversation(page.Messages)
		} else {
			s.state.PrependMessages(page.Messages)
		}
	}
	s.state.SetEndOfConversation(page.IsEndOfList)
	return page.Messages
}

// GetHistoryMessages refreshes the conversation list.
func (s *Session) GetHistoryMessages(ctx context.Context) []chat.HistoryChat {
	var history []chat.HistoryChat
	if err := s.client.Get(ctx, "/channel", &history); err != nil {
		s.logger.Warn("history fetch failed", zap.Error(err))
		s.notifyError("Failed to get messages")
		return nil
	}
	s.state.SetHistory(history)
	return history
}

func (s *Session) GetVoiceSettings(ctx context.Context, userID string) chat.VoiceSetting {
	var resp struct {
		Settings chat.VoiceSetting `json:"settings"`
	}
	if err := s.client.Get(ctx, "/voice-settings?user_id="+userID, &resp); err != nil {
		s.notifyError("Failed to get voice settings")
		return chat.VoiceSetting{}
	}
	return resp.Settings
}

func (s *Session) GetAllUsers(ctx context.Context) []chat.User {
	var users []chat.User
	if err := s.client.Get(ctx, "/user", &users); err != nil {
		s.notifier.Notify(notify.Notification{
			Title:       "Something went wrong!",
			Description: "Can't get all user",
		})
		return nil
	}
	return users
}

func (s *Session) GetUserByID(ctx context.Context, userID string) chat.User {
	var user chat.User
	if err := s.client.Get(ctx, "/user/"+userID, &user); err != nil {
		s.notifyError("Failed to get user")
		return chat.User{}
	}
	return user
}

// OpenChannel makes channelID the open conversation and clears its unread
// flag.
func (s *Session) OpenChannel(channelID string) {
	s.state.SetCurrentChannel(channelID)
	s.state.MarkChannelRead(channelID)
}

// SelectChannel upserts the channel and opens it.
func (s *Session) SelectChannel(ctx context.Context, channel chat.Channel) chat.ChannelDetail {
	detail := s.GetOrCreateChannel(ctx, channel)
	if detail.ID != "" {
		s.OpenChannel(detail.ID)
	}
	return detail
}
