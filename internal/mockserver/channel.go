package mockserver

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	nanoid "github.com/matoous/go-nanoid/v2"

	"chatlink/pkg/chat"
)

const messagePageSize = 20

type upsertChannelInput struct {
	ChannelID string   `json:"channelId"`
	Name      string   `json:"name"`
	UserIDs   []string `json:"userIds"`
}

// upsertChannelHandler creates the channel when it does not exist yet and
// returns its detail either way, so opening the same conversation twice is
// idempotent.
func (s *Server) upsertChannelHandler(c *gin.Context) {
	var input upsertChannelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"message": err.Error()})
		return
	}

	var record channelRecord
	err := s.db.First(&record, "id = ?", input.ChannelID).Error
	if err != nil {
		id := input.ChannelID
		if id == "" {
			id, err = nanoid.New(6)
			if err != nil {
				c.JSON(500, gin.H{"message": "Failed to generate id"})
				return
			}
		}
		channelType := string(chat.ChannelGroup)
		if len(input.UserIDs) == 2 {
			channelType = string(chat.ChannelDirect)
		}
		record = channelRecord{
			ID:        id,
			Name:      input.Name,
			Type:      channelType,
			Members:   strings.Join(input.UserIDs, ","),
			CreatedAt: time.Now(),
		}
		if err := s.db.Create(&record).Error; err != nil {
			c.JSON(500, gin.H{"message": "Failed to create channel"})
			return
		}
	}

	c.JSON(200, s.toChannelDetail(&record))
}

func (s *Server) channelDetailHandler(c *gin.Context) {
	var record channelRecord
	if err := s.db.First(&record, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(404, gin.H{"message": "Channel not found"})
		return
	}
	c.JSON(200, s.toChannelDetail(&record))
}

func (s *Server) toChannelDetail(record *channelRecord) chat.ChannelDetail {
	var members []userRecord
	if ids := record.memberIDs(); len(ids) > 0 {
		s.db.Find(&members, "id IN ?", ids)
	}
	users := make([]chat.User, len(members))
	for i := range members {
		users[i] = s.toUser(&members[i])
	}
	return chat.ChannelDetail{
		ID:    record.ID,
		Name:  record.Name,
		Type:  chat.ChannelType(record.Type),
		Users: users,
	}
}

// historyHandler lists the caller's channels, newest message first.
func (s *Server) historyHandler(c *gin.Context) {
	c.JSON(200, s.historyFor(c.GetString(ctxUserID), ""))
}

// historyFor builds the conversation list for userID. Channels match the
// unreadChannelID get flagged unread; the websocket relay uses that to mark
// freshly delivered messages.
func (s *Server) historyFor(userID, unreadChannelID string) []chat.HistoryChat {
	var channels []channelRecord
	s.db.Find(&channels)

	history := make([]chat.HistoryChat, 0, len(channels))
	for i := range channels {
		record := &channels[i]
		if !record.hasMember(userID) {
			continue
		}

		entry := chat.HistoryChat{
			ID:       record.ID,
			Name:     s.displayName(record, userID),
			Type:     chat.ChannelType(record.Type),
			IsUnread: record.ID == unreadChannelID,
			UserID:   userID,
		}
		var last messageRecord
		if err := s.db.Order("created_at DESC").First(&last, "channel_id = ?", record.ID).Error; err == nil {
			entry.Message = s.toMessage(&last)
		}
		history = append(history, entry)
	}
	return history
}

// displayName shows the peer's name for direct channels instead of the
// stored channel name.
func (s *Server) displayName(record *channelRecord, viewerID string) string {
	if chat.ChannelType(record.Type) != chat.ChannelDirect {
		return record.Name
	}
	for _, id := range record.memberIDs() {
		if id == viewerID {
			continue
		}
		var peer userRecord
		if err := s.db.First(&peer, "id = ?", id).Error; err == nil {
			return peer.FirstName + " " + peer.LastName
		}
	}
	return record.Name
}

// messagesHandler pages backward through a channel's messages. Page N skips
// the newest N*pageSize messages; each page is returned oldest first.
func (s *Server) messagesHandler(c *gin.Context) {
	channelID := c.Param("channelId")
	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 {
		c.JSON(400, gin.H{"message": "Invalid page index"})
		return
	}

	var total int64
	s.db.Model(&messageRecord{}).Where("channel_id = ?", channelID).Count(&total)

	var records []messageRecord
	s.db.Where("channel_id = ?", channelID).
		Order("created_at DESC").
		Offset(index * messagePageSize).
		Limit(messagePageSize).
		Find(&records)

	messages := make([]chat.Message, len(records))
	for i := range records {
		// Reverse into chronological ascending order.
		messages[len(records)-1-i] = s.toMessage(&records[i])
	}

	c.JSON(200, gin.H{
		"messages":    messages,
		"isEndOfList": int64((index+1)*messagePageSize) >= total,
	})
}

func (s *Server) toMessage(record *messageRecord) chat.Message {
	msg := chat.Message{
		ID:           record.ID,
		Content:      record.Content,
		SenderID:     record.SenderID,
		ChannelID:    record.ChannelID,
		AttachmentID: record.AttachmentID,
		StickerID:    record.StickerID,
		CreatedAt:    record.CreatedAt.UTC().Format(time.RFC3339),
	}
	var sender userRecord
	if err := s.db.First(&sender, "id = ?", record.SenderID).Error; err == nil {
		msg.SenderName = sender.FirstName + " " + sender.LastName
		msg.AvatarID = sender.AvatarID
	}
	return msg
}

func (s *Server) allUsersHandler(c *gin.Context) {
	var records []userRecord
	s.db.Find(&records)
	users := make([]chat.User, len(records))
	for i := range records {
		users[i] = s.toUser(&records[i])
	}
	c.JSON(200, users)
}

func (s *Server) userByIDHandler(c *gin.Context) {
	var record userRecord
	if err := s.db.First(&record, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(404, gin.H{"message": "User not found"})
		return
	}
	c.JSON(200, s.toUser(&record))
}

func (s *Server) voiceSettingsHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(400, gin.H{"message": "user_id is required"})
		return
	}
	c.JSON(200, gin.H{
		"settings": chat.VoiceSetting{
			ID:   "vs-" + userID,
			Name: "default",
		},
	})
}
