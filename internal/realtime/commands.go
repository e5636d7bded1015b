package realtime

import (
	"errors"

	"github.com/gorilla/websocket"

	"chatlink/pkg/chat"
)

// ErrNoCallRequest is returned by AcceptJoinCall when no invitation is
// pending.
var ErrNoCallRequest = errors.New("realtime: no pending call request")

// send writes one {type, data} envelope to the live connection. Writes are
// serialized; gorilla allows only one concurrent writer.
func (s *Session) send(t chat.FrameType, data any) error {
	conn := s.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	raw, err := chat.EncodeCommand(t, data)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, raw)
}

// SendMessage sends a chat message to a channel on behalf of the current
// user.
func (s *Session) SendMessage(msg chat.Message) error {
	return s.send(chat.CommandSendMessage, chat.SendMessageData{
		SenderID:     s.state.CurrentUser().UserID,
		ChannelID:    msg.ChannelID,
		Content:      msg.Content,
		AttachmentID: msg.AttachmentID,
		StickerID:    msg.StickerID,
	})
}

// MakeNewCall invites a channel to a call. The local in-call flag resets
// first so a stale flag from an earlier call cannot leak into this one.
func (s *Session) MakeNewCall(channelID, option string) error {
	s.state.SetInCall(false)
	return s.send(chat.CommandNewCall, chat.NewCallData{
		CallerID:  s.state.CurrentUser().UserID,
		ChannelID: channelID,
		Option:    option,
	})
}

// AcceptJoinCall answers the pending call invitation, echoing back its
// channel and option.
func (s *Session) AcceptJoinCall() error {
	req := s.state.CallRequest()
	if req == nil {
		return ErrNoCallRequest
	}
	return s.send(chat.CommandAcceptCall, chat.AcceptCallData{
		ActionUserID: s.state.CurrentUser().UserID,
		Option:       req.Option,
		ChannelID:    req.Channel.ID,
	})
}

func (s *Session) CancelCall(channelID string) error {
	return s.send(chat.CommandCancelCall, chat.CancelCallData{
		ActionUserID: s.state.CurrentUser().UserID,
		ChannelID:    channelID,
	})
}

// SendPeerSignal forwards a peer id to the other call participants.
func (s *Session) SendPeerSignal(peerID, channelID string) error {
	return s.send(chat.CommandPeerSignal, chat.PeerSignalData{
		SenderID:  s.state.CurrentUser().UserID,
		ChannelID: channelID,
		PeerID:    peerID,
	})
}
