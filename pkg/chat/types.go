package chat

// User is a chat user as the server serializes it. The same shape is used
// for the current user, presence entries and channel members.
type User struct {
	ID             string `json:"_id,omitempty"`
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	IsActive       bool   `json:"isActive"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ChannelID      string `json:"channelId,omitempty"`
	AvatarID       string `json:"avatarId,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
	VoiceSettingID string `json:"voiceSettingId,omitempty"`
	Phone          string `json:"phone,omitempty"`
	About          string `json:"about,omitempty"`
	CoverID        string `json:"coverId,omitempty"`
}

// ChannelType distinguishes direct conversations from group channels.
type ChannelType string

const (
	ChannelDirect ChannelType = "direct"
	ChannelGroup  ChannelType = "group"
)

type Message struct {
	ID           string `json:"_id"`
	Content      string `json:"content"`
	SenderID     string `json:"senderId"`
	SenderName   string `json:"senderName,omitempty"`
	ChannelID    string `json:"channelId"`
	CreatedAt    string `json:"createdAt,omitempty"`
	AttachmentID string `json:"attachmentId,omitempty"`
	StickerID    string `json:"stickerId,omitempty"`
	AvatarID     string `json:"avatarId,omitempty"`
}

// Channel is the client-side description sent when opening a conversation.
// The id is stable for direct channels so the upsert on the server is
// idempotent.
type Channel struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	UserIDs []string    `json:"userIds"`
	Type    ChannelType `json:"type,omitempty"`
	OnCall  bool        `json:"onCall,omitempty"`
}

// ChannelDetail is the server's full channel record, members resolved.
type ChannelDetail struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Type        ChannelType  `json:"type"`
	Users       []User       `json:"userIds"`
	AvatarID    string       `json:"avatarId,omitempty"`
	OnCall      bool         `json:"onCall"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Images      []string     `json:"images,omitempty"`
}

type Attachment struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// HistoryChat is one entry of the conversation list: the channel, its last
// message and whether it holds messages the user has not seen yet.
type HistoryChat struct {
	ID       string      `json:"_id"`
	Name     string      `json:"name"`
	Type     ChannelType `json:"type"`
	Message  Message     `json:"message"`
	AvatarID string      `json:"avatarId,omitempty"`
	IsUnread bool        `json:"isUnread"`
	UserID   string      `json:"userId,omitempty"`
}

// CallRequest is an inbound call invitation. At most one is pending at a time.
type CallRequest struct {
	From    User          `json:"from"`
	Channel ChannelDetail `json:"channel"`
	Option  string        `json:"option"`
}

type VoiceSetting struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createAt,omitempty"`
}
