package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edulink/edulink-backend/internal/models"
	"github.com/edulink/edulink-backend/internal/services"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

var (
	chatCoordinator *services.ChatCoordinator
	chatHub         *services.ChatHub
)

// InitChatHandlers wires the coordinator and hub into the HTTP layer.
// Called once from main before the router starts.
func InitChatHandlers(coordinator *services.ChatCoordinator, hub *services.ChatHub) {
	chatCoordinator = coordinator
	chatHub = hub
}

// ChatClientMessage represents frames coming from the frontend over WebSocket.
type ChatClientMessage struct {
	Type         string           `json:"type"` // "message", "media", "reaction", "delete", "history", "typing", "seen", "ping"
	ChatID       string           `json:"chat_id,omitempty"`
	ReceiverID   string           `json:"receiver_id,omitempty"`
	ReceiverKind models.UserKind  `json:"receiver_kind,omitempty"`
	Text         string           `json:"text,omitempty"`
	MediaURL     string           `json:"media_url,omitempty"`
	MediaKind    models.MediaKind `json:"media_kind,omitempty"`
	ReplyTo      string           `json:"reply_to,omitempty"`
	MessageID    string           `json:"message_id,omitempty"`
	Emoji        string           `json:"emoji,omitempty"`
	Typing       bool             `json:"typing,omitempty"`
}

// ChatWebSocket is the realtime chat gateway. Authentication happens before
// registration: the session token (Authorization: Bearer <token> or ?token=)
// must resolve to a verified (user id, kind) pair, else the connection is
// rejected with 401 and no coordinator method ever runs.
//
// On connect the connection joins the user's own room and, asynchronously,
// one room per chat already in the user's chat list, so broadcasts for all
// prior conversations arrive without re-initiation.
func ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		// Browser WebSocket clients can't set headers; allow ?token=.
		token = r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing session token", http.StatusUnauthorized)
			return
		}
	}

	userID, userKind, ok, err := services.ValidateSession(r.Context(), token)
	if err != nil || !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := chatHub.Register(userID, userKind, conn)
	defer chatHub.Unregister(c)

	// Rejoin rooms for every existing conversation in the background; the
	// read loop starts immediately.
	go func() {
		roomCtx, roomCancel := context.WithTimeout(ctx, 10*time.Second)
		defer roomCancel()

		chatIDs, err := chatCoordinator.ChatRoomIDs(roomCtx, userID)
		if err != nil {
			log.Printf("chat ws: room rejoin for %s failed: %v", userID, err)
			return
		}
		for _, chatID := range chatIDs {
			chatHub.JoinRoom(c, chatID)
		}
	}()

	conn.SetReadLimit(64 * 1024)
	refreshReadDeadline(conn)
	conn.SetPongHandler(func(appData string) error {
		refreshReadDeadline(conn)
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Disconnect. No persisted state changes; broadcasts to this
			// connection simply stop.
			log.Printf("chat ws: %s disconnected", userID)
			return
		}
		// Any frame counts as liveness, including application-level pings,
		// which never reach the pong handler.
		refreshReadDeadline(conn)

		var msg ChatClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "message", "media":
			// Media messages carry an uploaded URL; same save path either way.
			handleIncomingChatMessage(ctx, c, userID, userKind, msg)
		case "reaction":
			if _, err := chatCoordinator.AddReaction(ctx, msg.MessageID, userID, msg.Emoji); err != nil {
				emitChatError(c, msg.ChatID, err)
			}
		case "delete":
			if _, err := chatCoordinator.DeleteMessage(ctx, msg.MessageID, userID); err != nil {
				emitChatError(c, msg.ChatID, err)
			}
		case "history":
			handleHistoryRequest(ctx, c, userID, msg.ChatID)
		case "typing":
			// Ephemeral; scoped to the chat room, excluding this connection.
			chatHub.BroadcastToRoom(ctx, msg.ChatID, services.ChatEvent{
				Type:       services.EventTyping,
				ChatID:     msg.ChatID,
				UserID:     userID,
				UserKind:   userKind,
				Typing:     msg.Typing,
				OriginConn: c.ID,
			})
		case "seen":
			chatHub.BroadcastToRoom(ctx, msg.ChatID, services.ChatEvent{
				Type:       services.EventMessageSeen,
				ChatID:     msg.ChatID,
				MessageID:  msg.MessageID,
				UserID:     userID,
				OriginConn: c.ID,
			})
		case "ping":
			// Keepalive only; the read itself already refreshed the deadline.
		default:
			// Ignore unknown types
		}
	}
}

// handleIncomingChatMessage validates and persists a message through the
// coordinator, which handles chat-list updates, notification and broadcast.
func handleIncomingChatMessage(ctx context.Context, c *services.Connection, userID string, userKind models.UserKind, msg ChatClientMessage) {
	saved, err := chatCoordinator.SaveMessage(ctx, services.SaveMessageInput{
		ChatID:       msg.ChatID,
		SenderID:     userID,
		SenderKind:   userKind,
		ReceiverID:   msg.ReceiverID,
		ReceiverKind: msg.ReceiverKind,
		Text:         msg.Text,
		MediaURL:     msg.MediaURL,
		MediaKind:    msg.MediaKind,
		ReplyTo:      msg.ReplyTo,
	})
	if err != nil {
		emitChatError(c, msg.ChatID, err)
		return
	}

	// The sender's broadcast arrives via their user room; a new chat room
	// membership is established here for messages in a just-initiated chat.
	chatHub.JoinRoom(c, saved.ChatID)
}

// handleHistoryRequest sends the chat history directly to the requesting
// connection. The unread reset side effect applies exactly as on the REST
// history endpoint.
func handleHistoryRequest(ctx context.Context, c *services.Connection, userID, chatID string) {
	msgs, err := chatCoordinator.GetMessages(ctx, chatID, userID)
	if err != nil {
		emitChatError(c, chatID, err)
		return
	}

	for i := range msgs {
		_ = c.Send(services.ChatEvent{
			Type:    services.EventReceiveMessage,
			ChatID:  chatID,
			Message: &msgs[i],
		})
	}
}

// emitChatError reports a failure back on the emitting connection only.
func emitChatError(c *services.Connection, chatID string, err error) {
	if sendErr := c.Send(services.ChatEvent{
		Type:      services.EventError,
		ChatID:    chatID,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}); sendErr != nil {
		log.Printf("chat ws: error emit failed: %v", sendErr)
	}
}

const chatReadWait = 90 * time.Second

// refreshReadDeadline pushes the idle cutoff out after any sign of life:
// a successful read or a protocol pong.
func refreshReadDeadline(c interface{ SetReadDeadline(time.Time) error }) {
	_ = c.SetReadDeadline(time.Now().Add(chatReadWait))
}

// extractBearerToken pulls the token out of an Authorization header.
func extractBearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
