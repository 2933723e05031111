package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserKind distinguishes the two chat participant roles.
// Valid values: "Teacher", "Student".
type UserKind string

const (
	KindTeacher UserKind = "Teacher"
	KindStudent UserKind = "Student"
)

// Valid reports whether k is one of the two known participant kinds.
func (k UserKind) Valid() bool {
	return k == KindTeacher || k == KindStudent
}

// MediaKind classifies an attached media reference.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
	MediaVideo    MediaKind = "video"
)

func (m MediaKind) Valid() bool {
	return m == MediaImage || m == MediaDocument || m == MediaVideo
}

// AllowedReactions is the fixed emoji set a reactor may pick from.
var AllowedReactions = map[string]bool{
	"👍": true,
	"❤️": true,
	"😂": true,
	"😮": true,
	"😢": true,
	"🙏": true,
}

// Reaction is one reactor's emoji on a message. A reactor has at most one
// reaction per message; a newer emoji replaces the older one.
type Reaction struct {
	UserID string `bson:"user_id" json:"user_id"`
	Emoji  string `bson:"emoji" json:"emoji"`
}

// Message is stored in MongoDB, one document per message (flat collection
// keyed by chat_id for pagination). A message carries text and/or media,
// never neither. Content is immutable after save; the only mutations are
// reaction upserts and the soft-delete flag.
type Message struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID       string             `bson:"chat_id" json:"chat_id"`
	SenderID     string             `bson:"sender_id" json:"sender_id"`
	SenderKind   UserKind           `bson:"sender_kind" json:"sender_kind"`
	ReceiverID   string             `bson:"receiver_id" json:"receiver_id"`
	ReceiverKind UserKind           `bson:"receiver_kind" json:"receiver_kind"`
	Text         string             `bson:"text,omitempty" json:"text,omitempty"`
	MediaURL     string             `bson:"media_url,omitempty" json:"media_url,omitempty"`
	MediaKind    MediaKind          `bson:"media_kind,omitempty" json:"media_kind,omitempty"`
	ReplyTo      string             `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	Reactions    []Reaction         `bson:"reactions,omitempty" json:"reactions,omitempty"`
	Timestamp    time.Time          `bson:"timestamp" json:"timestamp"`
	IsDeleted    bool               `bson:"is_deleted" json:"is_deleted"`
}

// MediaMessagePreview is the chat-list preview shown for messages without text.
const MediaMessagePreview = "Media message"

// Preview returns the chat-list preview text for the message.
func (m *Message) Preview() string {
	if m.Text == "" {
		return MediaMessagePreview
	}
	return m.Text
}

// ChatSummary is one conversation's preview state inside a user's chat list.
// There is at most one summary per (owner, counterpart) pair.
type ChatSummary struct {
	ChatID      string    `bson:"chat_id" json:"chat_id"`
	ContactID   string    `bson:"contact_id" json:"contact_id"`
	ContactKind UserKind  `bson:"contact_kind" json:"contact_kind"`
	LastMessage string    `bson:"last_message" json:"last_message"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
	UnreadCount int       `bson:"unread_count" json:"unread_count"`

	// Contact display fields, resolved per request; never persisted.
	Contact *Contact `bson:"-" json:"contact,omitempty"`
}

// ChatListEntry is one user's full conversation index, one document per user.
type ChatListEntry struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   string             `bson:"user_id" json:"user_id"`
	UserKind UserKind           `bson:"user_kind" json:"user_kind"`
	Chats    []ChatSummary      `bson:"chats" json:"chats"`
}

// Contact is the minimal display projection of a teacher or student,
// joined into chat lists from the identity store.
type Contact struct {
	ID        string   `json:"id"`
	Kind      UserKind `json:"kind"`
	Name      string   `json:"name"`
	AvatarURL string   `json:"avatar_url,omitempty"`
}

// NotificationType classifies a chat notification.
type NotificationType string

const (
	NotificationMessage NotificationType = "message"
	NotificationMedia   NotificationType = "media"
)

// Notification is the offline-delivery record created for the receiver of
// every saved message. Failures creating one never fail the message itself.
type Notification struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReceiverID string             `bson:"receiver_id" json:"receiver_id"`
	Type       NotificationType   `bson:"type" json:"type"`
	Title      string             `bson:"title" json:"title"`
	ChatID     string             `bson:"chat_id" json:"chat_id"`
	MessageID  string             `bson:"message_id" json:"message_id"`
	SenderID   string             `bson:"sender_id" json:"sender_id"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	Read       bool               `bson:"read" json:"read"`
}
