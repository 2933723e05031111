package services

import (
	"context"

	"github.com/edulink/edulink-backend/internal/models"
)

// MessageStore is the persisted message log for all chats. Messages are
// append-mostly: after creation only reactions and the soft-delete flag
// change, through atomic per-document updates.
type MessageStore interface {
	// Create persists a message, assigning the server timestamp and id.
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)

	// FindByChatID returns the chat's non-deleted messages in ascending
	// timestamp order.
	FindByChatID(ctx context.Context, chatID string) ([]models.Message, error)

	// FindByID returns a message regardless of its soft-delete flag.
	FindByID(ctx context.Context, id string) (*models.Message, error)

	// UpsertReaction replaces the reactor's existing reaction on the
	// message or appends a new one, atomically. chatID is the message's
	// chat, used to keep derived read paths coherent.
	UpsertReaction(ctx context.Context, chatID, id, userID, emoji string) error

	// MarkDeleted flips the soft-delete flag. Content is retained.
	MarkDeleted(ctx context.Context, chatID, id string) error
}

// ChatListStore is the per-user conversation index plus the pair registry
// that makes chat initiation idempotent.
type ChatListStore interface {
	// FindOrCreate returns the user's chat-list row, creating an empty one
	// if absent.
	FindOrCreate(ctx context.Context, userID string, kind models.UserKind) (*models.ChatListEntry, error)

	// Find returns the user's chat-list row, or nil when the user has none.
	Find(ctx context.Context, userID string) (*models.ChatListEntry, error)

	// UpsertSummary updates the summary for summary.ChatID in place, or
	// appends it when the user has no summary for that chat yet. The
	// unread count of an existing summary is left untouched.
	UpsertSummary(ctx context.Context, userID string, kind models.UserKind, summary models.ChatSummary) error

	// IncrementUnread adds one to the user's unread counter for the chat.
	IncrementUnread(ctx context.Context, userID, chatID string) error

	// ResetUnread sets the user's unread counter for the chat to zero.
	ResetUnread(ctx context.Context, userID, chatID string) error

	// FindPair returns the chat id already minted for the pair, or "".
	FindPair(ctx context.Context, teacherID, studentID string) (string, error)

	// MintPair records chatID for the pair unless one exists, and returns
	// the winning chat id. Safe under concurrent initiation (unique index
	// on the pair).
	MintPair(ctx context.Context, teacherID, studentID, chatID string) (string, error)
}

// NotificationSink records a notification for the receiver of a message.
// Failures are logged by the caller and never surfaced.
type NotificationSink interface {
	Create(ctx context.Context, n *models.Notification) error
}

// IdentityResolver joins a participant id against the identity store and
// returns display fields for chat-list population.
type IdentityResolver interface {
	Resolve(ctx context.Context, id string, kind models.UserKind) (*models.Contact, error)
}

// Broadcaster delivers events to rooms. Delivery is fire-and-forget,
// at-most-once per connected room member; callers never block on it.
type Broadcaster interface {
	BroadcastToRoom(ctx context.Context, roomID string, event ChatEvent)
}
