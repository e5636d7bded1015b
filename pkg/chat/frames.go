package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Every websocket frame, in either direction, is a JSON envelope of the form
// {"type": "...", "data": {...}}. Inbound frames decode into one concrete
// Frame type per tag; unknown tags are rejected rather than silently ignored.

type FrameType string

const (
	// Inbound frame tags.
	FrameOnlineUsers FrameType = "online-users"
	FrameMessage     FrameType = "message"
	FrameNewCall     FrameType = "new-call"
	FrameCancelCall  FrameType = "cancel-call"
	FrameJoinCall    FrameType = "join-call"
	FrameError       FrameType = "error"

	// Outbound command tags. new-call and cancel-call are reused on the
	// inbound side by the server when it relays them.
	CommandSendMessage FrameType = "send-message"
	CommandNewCall     FrameType = "new-call"
	CommandAcceptCall  FrameType = "accept-call"
	CommandCancelCall  FrameType = "cancel-call"
	CommandPeerSignal  FrameType = "peer-signal"
)

var (
	ErrUnknownFrameType = errors.New("chat: unknown frame type")
	ErrMissingFrameType = errors.New("chat: frame has no type tag")
)

// Envelope is the raw wire shape before the payload is decoded.
type Envelope struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Frame is an inbound frame decoded into its concrete payload.
type Frame interface {
	FrameType() FrameType
}

// OnlineUsersFrame carries the full presence set. It replaces any previous
// set, it is never a delta.
type OnlineUsersFrame struct {
	Users []User
}

func (OnlineUsersFrame) FrameType() FrameType { return FrameOnlineUsers }

// MessageFrame carries one live message plus the refreshed conversation list.
type MessageFrame struct {
	Message Message       `json:"message"`
	History []HistoryChat `json:"history"`
}

func (MessageFrame) FrameType() FrameType { return FrameMessage }

type NewCallFrame struct {
	Caller  *User          `json:"caller"`
	Channel *ChannelDetail `json:"channel"`
	Option  string         `json:"option"`
}

func (NewCallFrame) FrameType() FrameType { return FrameNewCall }

type CancelCallFrame struct{}

func (CancelCallFrame) FrameType() FrameType { return FrameCancelCall }

type JoinCallFrame struct {
	ChannelID string `json:"channelId"`
	Option    string `json:"option"`
}

func (JoinCallFrame) FrameType() FrameType { return FrameJoinCall }

type ErrorFrame struct {
	Message string `json:"message"`
}

func (ErrorFrame) FrameType() FrameType { return FrameError }

// DecodeFrame parses one inbound frame. An envelope without a type tag or
// with a tag the client does not know is an error; the caller decides whether
// to drop or surface it.
func DecodeFrame(raw []byte) (Frame, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("chat: decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, ErrMissingFrameType
	}

	switch env.Type {
	case FrameOnlineUsers:
		var users []User
		if err := json.Unmarshal(env.Data, &users); err != nil {
			return nil, fmt.Errorf("chat: decode %s: %w", env.Type, err)
		}
		return OnlineUsersFrame{Users: users}, nil
	case FrameMessage:
		var f MessageFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("chat: decode %s: %w", env.Type, err)
		}
		return f, nil
	case FrameNewCall:
		var f NewCallFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("chat: decode %s: %w", env.Type, err)
		}
		return f, nil
	case FrameCancelCall:
		return CancelCallFrame{}, nil
	case FrameJoinCall:
		var f JoinCallFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("chat: decode %s: %w", env.Type, err)
		}
		return f, nil
	case FrameError:
		var f ErrorFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("chat: decode %s: %w", env.Type, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, env.Type)
}

// EncodeCommand serializes an outbound {type, data} envelope.
func EncodeCommand(t FrameType, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("chat: encode %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: payload})
}

// Outbound command payloads.

type SendMessageData struct {
	SenderID     string `json:"senderId"`
	ChannelID    string `json:"channelId"`
	Content      string `json:"content"`
	AttachmentID string `json:"attachmentId,omitempty"`
	StickerID    string `json:"stickerId,omitempty"`
}

type NewCallData struct {
	CallerID  string `json:"callerId"`
	ChannelID string `json:"channelId"`
	Option    string `json:"option"`
}

type AcceptCallData struct {
	ActionUserID string `json:"actionUserId"`
	Option       string `json:"option"`
	ChannelID    string `json:"channelId"`
}

type CancelCallData struct {
	ActionUserID string `json:"actionUserId"`
	ChannelID    string `json:"channelId"`
}

type PeerSignalData struct {
	SenderID  string `json:"senderId"`
	ChannelID string `json:"channelId"`
	PeerID    string `json:"peerId"`
}
