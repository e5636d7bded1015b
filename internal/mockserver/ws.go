package mockserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatlink/pkg/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

func (c *wsClient) writePump() {
	for raw := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}

type hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
}

func newHub() *hub {
	return &hub{clients: make(map[string]*wsClient)}
}

func (h *hub) register(client *wsClient) {
	h.mu.Lock()
	old := h.clients[client.userID]
	h.clients[client.userID] = client
	h.mu.Unlock()
	if old != nil {
		old.conn.Close()
	}
}

// unregister closes the send channel under the lock so a concurrent sendTo
// cannot write to a closed channel.
func (h *hub) unregister(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.userID] == client {
		delete(h.clients, client.userID)
	}
	close(client.send)
}

func (h *hub) onlineIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// sendTo drops the frame when the recipient is offline or its buffer is full.
func (h *hub) sendTo(userID string, raw []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client := h.clients[userID]; client != nil {
		select {
		case client.send <- raw:
		default:
		}
	}
}

// wsHandler authenticates the token query parameter, joins the hub and
// relays commands until the connection drops.
func (s *Server) wsHandler(c *gin.Context) {
	userID, err := s.parseToken(c.Query("token"))
	if err != nil {
		c.JSON(401, gin.H{"message": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &wsClient{userID: userID, conn: conn, send: make(chan []byte, 64)}
	go client.writePump()

	s.hub.register(client)
	s.broadcastOnlineUsers()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleCommand(client, raw)
	}

	s.hub.unregister(client)
	conn.Close()
	s.broadcastOnlineUsers()
}

func (s *Server) broadcastOnlineUsers() {
	ids := s.hub.onlineIDs()
	users := make([]chat.User, 0, len(ids))
	for _, id := range ids {
		var record userRecord
		if err := s.db.First(&record, "id = ?", id).Error; err == nil {
			users = append(users, s.toUser(&record))
		}
	}
	raw, err := chat.EncodeCommand(chat.FrameOnlineUsers, users)
	if err != nil {
		return
	}
	for _, id := range ids {
		s.hub.sendTo(id, raw)
	}
}

func (s *Server) sendError(client *wsClient, message string) {
	raw, err := chat.EncodeCommand(chat.FrameError, chat.ErrorFrame{Message: message})
	if err != nil {
		return
	}
	s.hub.sendTo(client.userID, raw)
}

func (s *Server) handleCommand(client *wsClient, raw []byte) {
	var env chat.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		s.sendError(client, "Malformed frame")
		return
	}

	switch env.Type {
	case chat.CommandSendMessage:
		s.relayMessage(client, env.Data)
	case chat.CommandNewCall:
		s.relayNewCall(client, env.Data)
	case chat.CommandAcceptCall:
		s.relayAcceptCall(client, env.Data)
	case chat.CommandCancelCall:
		s.relayCancelCall(client, env.Data)
	case chat.CommandPeerSignal:
		s.relayPeerSignal(client, env.Data)
	default:
		s.sendError(client, "Unknown command "+string(env.Type))
	}
}

// relayMessage persists the message and fans it out to every online channel
// member, each with their own refreshed history.
func (s *Server) relayMessage(client *wsClient, data json.RawMessage) {
	var cmd chat.SendMessageData
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.ChannelID == "" {
		s.sendError(client, "Invalid message")
		return
	}

	var channel channelRecord
	if err := s.db.First(&channel, "id = ?", cmd.ChannelID).Error; err != nil {
		s.sendError(client, "Channel not found")
		return
	}
	if !channel.hasMember(client.userID) {
		s.sendError(client, "Not a channel member")
		return
	}

	record := messageRecord{
		ID:           uuid.NewString(),
		ChannelID:    cmd.ChannelID,
		SenderID:     client.userID,
		Content:      cmd.Content,
		AttachmentID: cmd.AttachmentID,
		StickerID:    cmd.StickerID,
		CreatedAt:    time.Now(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.logger.Warn("failed to persist message", zap.Error(err))
		s.sendError(client, "Failed to store message")
		return
	}

	message := s.toMessage(&record)
	for _, memberID := range channel.memberIDs() {
		unread := ""
		if memberID != client.userID {
			unread = channel.ID
		}
		raw, err := chat.EncodeCommand(chat.FrameMessage, chat.MessageFrame{
			Message: message,
			History: s.historyFor(memberID, unread),
		})
		if err != nil {
			continue
		}
		s.hub.sendTo(memberID, raw)
	}
}

func (s *Server) relayNewCall(client *wsClient, data json.RawMessage) {
	var cmd chat.NewCallData
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.ChannelID == "" || cmd.Option == "" {
		s.sendError(client, "Invalid call request")
		return
	}

	var caller userRecord
	if err := s.db.First(&caller, "id = ?", client.userID).Error; err != nil {
		s.sendError(client, "Unknown caller")
		return
	}
	var channel channelRecord
	if err := s.db.First(&channel, "id = ?", cmd.ChannelID).Error; err != nil {
		s.sendError(client, "Channel not found")
		return
	}

	callerUser := s.toUser(&caller)
	detail := s.toChannelDetail(&channel)
	raw, err := chat.EncodeCommand(chat.FrameNewCall, chat.NewCallFrame{
		Caller:  &callerUser,
		Channel: &detail,
		Option:  cmd.Option,
	})
	if err != nil {
		return
	}
	for _, memberID := range channel.memberIDs() {
		if memberID != client.userID {
			s.hub.sendTo(memberID, raw)
		}
	}
}

// relayAcceptCall tells every channel member, caller included, to join.
func (s *Server) relayAcceptCall(client *wsClient, data json.RawMessage) {
	var cmd chat.AcceptCallData
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.ChannelID == "" || cmd.Option == "" {
		s.sendError(client, "Invalid call answer")
		return
	}

	var channel channelRecord
	if err := s.db.First(&channel, "id = ?", cmd.ChannelID).Error; err != nil {
		s.sendError(client, "Channel not found")
		return
	}

	raw, err := chat.EncodeCommand(chat.FrameJoinCall, chat.JoinCallFrame{
		ChannelID: cmd.ChannelID,
		Option:    cmd.Option,
	})
	if err != nil {
		return
	}
	for _, memberID := range channel.memberIDs() {
		s.hub.sendTo(memberID, raw)
	}
}

func (s *Server) relayCancelCall(client *wsClient, data json.RawMessage) {
	var cmd chat.CancelCallData
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.ChannelID == "" {
		s.sendError(client, "Invalid call cancel")
		return
	}

	var channel channelRecord
	if err := s.db.First(&channel, "id = ?", cmd.ChannelID).Error; err != nil {
		return
	}

	raw, err := chat.EncodeCommand(chat.FrameCancelCall, struct{}{})
	if err != nil {
		return
	}
	for _, memberID := range channel.memberIDs() {
		if memberID != client.userID {
			s.hub.sendTo(memberID, raw)
		}
	}
}

func (s *Server) relayPeerSignal(client *wsClient, data json.RawMessage) {
	var cmd chat.PeerSignalData
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.ChannelID == "" {
		s.sendError(client, "Invalid peer signal")
		return
	}

	var channel channelRecord
	if err := s.db.First(&channel, "id = ?", cmd.ChannelID).Error; err != nil {
		return
	}

	raw, err := chat.EncodeCommand(chat.CommandPeerSignal, cmd)
	if err != nil {
		return
	}
	for _, memberID := range channel.memberIDs() {
		if memberID != client.userID {
			s.hub.sendTo(memberID, raw)
		}
	}
}
