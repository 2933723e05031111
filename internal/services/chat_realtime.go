package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/edulink/edulink-backend/internal/models"
)

// Event names are part of the client contract.
const (
	EventNewChat         = "newChat"
	EventReceiveMessage  = "receiveMessage"
	EventMessageReaction = "messageReaction"
	EventMessageDeleted  = "messageDeleted"
	EventTyping          = "typing"
	EventMessageSeen     = "messageSeen"
	EventError           = "error"
)

const chatRoomChannelPrefix = "chat:room:"

// ChatEvent is the payload broadcast over Redis and WebSocket. One flat
// struct for all event types; unset fields are omitted on the wire.
type ChatEvent struct {
	Type      string          `json:"type"`
	ChatID    string          `json:"chat_id,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	UserKind  models.UserKind `json:"user_kind,omitempty"`
	Emoji     string          `json:"emoji,omitempty"`
	Contact   *models.Contact `json:"contact,omitempty"`
	Typing    bool            `json:"typing"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`

	// OriginConn names the emitting connection for ephemeral events
	// (typing, seen) so fan-out can skip it.
	OriginConn string `json:"origin_conn,omitempty"`
}

// ChatConn is the minimal interface our WebSocket implementation must satisfy.
type ChatConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Connection is one registered WebSocket connection. A user may hold several
// (multiple tabs/devices); each gets its own id and room set.
type Connection struct {
	ID       string
	UserID   string
	UserKind models.UserKind

	conn    ChatConn
	writeMu sync.Mutex
}

// Send writes an event to the connection. gorilla connections allow only one
// concurrent writer, hence the lock.
func (c *Connection) Send(ev ChatEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(ev)
}

// ChatHub is the registry of connections and room memberships. Rooms are
// named either by a user id (private channel) or a chat id (shared channel).
// Cross-instance delivery goes through Redis pub/sub; the hub only fans out
// to connections on this instance.
type ChatHub struct {
	mu    sync.RWMutex
	conns map[string]*Connection            // conn id -> connection
	rooms map[string]map[string]*Connection // room id -> conn id -> connection

	redis        *redis.Client
	subscriberOn sync.Once
}

func NewChatHub(redisClient *redis.Client) *ChatHub {
	return &ChatHub{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]*Connection),
		redis: redisClient,
	}
}

// Register adds a connection for an authenticated user and joins the user's
// own room so direct broadcasts reach them immediately.
func (h *ChatHub) Register(userID string, kind models.UserKind, conn ChatConn) *Connection {
	c := &Connection{
		ID:       uuid.NewString(),
		UserID:   userID,
		UserKind: kind,
		conn:     conn,
	}

	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()

	h.JoinRoom(c, userID)
	return c
}

// Unregister removes the connection from every room and the registry.
func (h *ChatHub) Unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, c.ID)
	for room, members := range h.rooms {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// JoinRoom adds the connection to a room, creating the room if needed.
func (h *ChatHub) JoinRoom(c *Connection, roomID string) {
	if roomID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Connection)
		h.rooms[roomID] = members
	}
	members[c.ID] = c
}

// LeaveRoom removes the connection from a room.
func (h *ChatHub) LeaveRoom(c *Connection, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// RoomSize returns the number of local connections in a room.
func (h *ChatHub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// BroadcastToRoom publishes an event for a room. With Redis configured the
// event goes through pub/sub so every instance fans out to its own members;
// without it (tests, single instance degraded mode) fan-out is local only.
// Never blocks the caller.
func (h *ChatHub) BroadcastToRoom(ctx context.Context, roomID string, ev ChatEvent) {
	if roomID == "" {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if h.redis == nil {
		go h.fanOutLocal(roomID, ev)
		return
	}

	go func() {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("chat hub: marshal event: %v", err)
			return
		}
		// The caller's request context may be done by the time this runs;
		// delivery gets its own deadline.
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.redis.Publish(pubCtx, chatRoomChannelPrefix+roomID, data).Err(); err != nil {
			log.Printf("chat hub: publish to room %s failed: %v", roomID, err)
			// Degrade to local delivery so single-instance setups keep working.
			h.fanOutLocal(roomID, ev)
		}
	}()
}

// fanOutLocal delivers an event to every local member of the room, skipping
// the emitting connection for ephemeral events. Best-effort: write errors are
// logged and the member is left for the read loop to reap.
func (h *ChatHub) fanOutLocal(roomID string, ev ChatEvent) {
	h.mu.RLock()
	members := make([]*Connection, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	// A newChat event also enrolls the user's live connections in the new
	// chat room, so room-scoped typing and seen events flow without a
	// reconnect. Works across instances because every instance's subscriber
	// runs this fan-out for its own members.
	if ev.Type == EventNewChat && ev.ChatID != "" {
		for _, c := range members {
			h.JoinRoom(c, ev.ChatID)
		}
	}

	for _, c := range members {
		if ev.OriginConn != "" && ev.OriginConn == c.ID {
			continue
		}
		if err := c.Send(ev); err != nil {
			log.Printf("chat hub: write to conn %s failed: %v", c.ID, err)
		}
	}
}

// StartSubscriber ensures a single shared Redis listener per instance.
func (h *ChatHub) StartSubscriber(ctx context.Context) {
	if h.redis == nil {
		log.Println("Redis client not configured; chat subscriber not started")
		return
	}
	h.subscriberOn.Do(func() {
		go h.runSubscriber(ctx)
	})
}

func (h *ChatHub) runSubscriber(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := h.redis.PSubscribe(ctx, chatRoomChannelPrefix+"*")
			defer pubsub.Close()

			log.Println("✅ Chat Redis subscriber started (pattern: chat:room:*)")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					log.Printf("Redis subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var ev ChatEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("failed to unmarshal chat event: %v", err)
					continue
				}

				// The room id is the channel suffix.
				room := strings.TrimPrefix(msg.Channel, chatRoomChannelPrefix)
				h.fanOutLocal(room, ev)
			}
		}()
	}
}
