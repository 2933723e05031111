package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edulink/edulink-backend/internal/models"
)

// ChatCoordinator orchestrates chat initiation, message delivery, reactions,
// deletion and unread accounting. It is the sole writer to the message and
// chat-list stores and the sole emitter to the realtime transport. It holds
// no mutable state of its own; everything lives in the stores, updated with
// atomic per-document operations.
type ChatCoordinator struct {
	Messages      MessageStore
	ChatLists     ChatListStore
	Notifications NotificationSink
	Identities    IdentityResolver
	Broadcast     Broadcaster
}

func NewChatCoordinator(messages MessageStore, chatLists ChatListStore, notifications NotificationSink, identities IdentityResolver, broadcast Broadcaster) *ChatCoordinator {
	return &ChatCoordinator{
		Messages:      messages,
		ChatLists:     chatLists,
		Notifications: notifications,
		Identities:    identities,
		Broadcast:     broadcast,
	}
}

// InitiateChat returns the chat id for the (teacher, student) pair, minting
// one on first contact. Idempotent: repeated calls return the same id, and
// the two chat-list rows are created together or the call fails with no
// surviving one-sided state (all writes are upserts, safe to retry).
func (c *ChatCoordinator) InitiateChat(ctx context.Context, teacherID, studentID string) (string, error) {
	if !ValidIdentity(teacherID, models.KindTeacher) || !ValidIdentity(studentID, models.KindStudent) || teacherID == studentID {
		return "", ErrInvalidIdentity
	}

	existing, err := c.ChatLists.FindPair(ctx, teacherID, studentID)
	if err != nil {
		return "", fmt.Errorf("%w: pair lookup: %v", ErrPersistenceFailed, err)
	}
	if existing != "" {
		// A previous attempt may have failed between the two row upserts;
		// repair anything missing, otherwise leave the rows untouched.
		if err := c.ensurePairSummaries(ctx, existing, teacherID, studentID); err != nil {
			return "", err
		}
		return existing, nil
	}

	chatID, err := c.ChatLists.MintPair(ctx, teacherID, studentID, uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("%w: mint pair: %v", ErrPersistenceFailed, err)
	}

	now := time.Now().UTC()
	teacherSummary := models.ChatSummary{
		ChatID:      chatID,
		ContactID:   studentID,
		ContactKind: models.KindStudent,
		LastMessage: "",
		Timestamp:   now,
		UnreadCount: 0,
	}
	studentSummary := models.ChatSummary{
		ChatID:      chatID,
		ContactID:   teacherID,
		ContactKind: models.KindTeacher,
		LastMessage: "",
		Timestamp:   now,
		UnreadCount: 0,
	}

	if _, err := c.ChatLists.FindOrCreate(ctx, teacherID, models.KindTeacher); err != nil {
		return "", fmt.Errorf("%w: teacher chat list row: %v", ErrPersistenceFailed, err)
	}
	if _, err := c.ChatLists.FindOrCreate(ctx, studentID, models.KindStudent); err != nil {
		return "", fmt.Errorf("%w: student chat list row: %v", ErrPersistenceFailed, err)
	}
	if err := c.ChatLists.UpsertSummary(ctx, teacherID, models.KindTeacher, teacherSummary); err != nil {
		return "", fmt.Errorf("%w: teacher chat list: %v", ErrPersistenceFailed, err)
	}
	if err := c.ChatLists.UpsertSummary(ctx, studentID, models.KindStudent, studentSummary); err != nil {
		return "", fmt.Errorf("%w: student chat list: %v", ErrPersistenceFailed, err)
	}

	c.Broadcast.BroadcastToRoom(ctx, teacherID, ChatEvent{
		Type:      EventNewChat,
		ChatID:    chatID,
		UserID:    studentID,
		UserKind:  models.KindStudent,
		Timestamp: now,
	})
	c.Broadcast.BroadcastToRoom(ctx, studentID, ChatEvent{
		Type:      EventNewChat,
		ChatID:    chatID,
		UserID:    teacherID,
		UserKind:  models.KindTeacher,
		Timestamp: now,
	})

	return chatID, nil
}

// ensurePairSummaries backfills a missing chat summary for either
// participant of an already-minted pair. Existing summaries are not touched.
func (c *ChatCoordinator) ensurePairSummaries(ctx context.Context, chatID, teacherID, studentID string) error {
	now := time.Now().UTC()
	participants := []struct {
		userID      string
		userKind    models.UserKind
		contactID   string
		contactKind models.UserKind
	}{
		{teacherID, models.KindTeacher, studentID, models.KindStudent},
		{studentID, models.KindStudent, teacherID, models.KindTeacher},
	}

	for _, p := range participants {
		entry, err := c.ChatLists.Find(ctx, p.userID)
		if err != nil {
			return fmt.Errorf("%w: chat list lookup: %v", ErrPersistenceFailed, err)
		}
		present := false
		if entry != nil {
			for _, s := range entry.Chats {
				if s.ChatID == chatID {
					present = true
					break
				}
			}
		}
		if present {
			continue
		}
		err = c.ChatLists.UpsertSummary(ctx, p.userID, p.userKind, models.ChatSummary{
			ChatID:      chatID,
			ContactID:   p.contactID,
			ContactKind: p.contactKind,
			LastMessage: "",
			Timestamp:   now,
		})
		if err != nil {
			return fmt.Errorf("%w: backfill chat list: %v", ErrPersistenceFailed, err)
		}
	}
	return nil
}

// SaveMessageInput carries everything needed to persist one message.
type SaveMessageInput struct {
	ChatID       string
	SenderID     string
	SenderKind   models.UserKind
	ReceiverID   string
	ReceiverKind models.UserKind
	Text         string
	MediaURL     string
	MediaKind    models.MediaKind
	ReplyTo      string
}

// SaveMessage persists a message and performs its fan-out: both chat-list
// previews, the receiver's unread counter, the receiver's notification, and
// the receiveMessage broadcast plus a typing reset for the chat room.
// Nothing is broadcast if persistence fails; once persisted, notification
// and broadcast failures are best-effort and never unwind the save.
func (c *ChatCoordinator) SaveMessage(ctx context.Context, in SaveMessageInput) (*models.Message, error) {
	if in.ChatID == "" {
		return nil, ErrValidationFailed
	}
	if !ValidIdentity(in.SenderID, in.SenderKind) || !ValidIdentity(in.ReceiverID, in.ReceiverKind) {
		return nil, ErrInvalidIdentity
	}
	if in.SenderID == in.ReceiverID {
		return nil, ErrValidationFailed
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && in.MediaURL == "" {
		return nil, ErrValidationFailed
	}
	if in.MediaURL != "" && !in.MediaKind.Valid() {
		return nil, ErrValidationFailed
	}

	msg := &models.Message{
		ChatID:       in.ChatID,
		SenderID:     in.SenderID,
		SenderKind:   in.SenderKind,
		ReceiverID:   in.ReceiverID,
		ReceiverKind: in.ReceiverKind,
		Text:         text,
		MediaURL:     in.MediaURL,
		MediaKind:    in.MediaKind,
		ReplyTo:      in.ReplyTo,
	}

	saved, err := c.Messages.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: save message: %v", ErrPersistenceFailed, err)
	}

	preview := saved.Preview()
	senderSummary := models.ChatSummary{
		ChatID:      saved.ChatID,
		ContactID:   saved.ReceiverID,
		ContactKind: saved.ReceiverKind,
		LastMessage: preview,
		Timestamp:   saved.Timestamp,
	}
	receiverSummary := models.ChatSummary{
		ChatID:      saved.ChatID,
		ContactID:   saved.SenderID,
		ContactKind: saved.SenderKind,
		LastMessage: preview,
		Timestamp:   saved.Timestamp,
	}

	if err := c.ChatLists.UpsertSummary(ctx, saved.SenderID, saved.SenderKind, senderSummary); err != nil {
		return nil, fmt.Errorf("%w: sender chat list: %v", ErrPersistenceFailed, err)
	}
	if err := c.ChatLists.UpsertSummary(ctx, saved.ReceiverID, saved.ReceiverKind, receiverSummary); err != nil {
		return nil, fmt.Errorf("%w: receiver chat list: %v", ErrPersistenceFailed, err)
	}
	if err := c.ChatLists.IncrementUnread(ctx, saved.ReceiverID, saved.ChatID); err != nil {
		return nil, fmt.Errorf("%w: unread counter: %v", ErrPersistenceFailed, err)
	}

	c.notifyReceiver(ctx, saved)

	ev := ChatEvent{
		Type:    EventReceiveMessage,
		ChatID:  saved.ChatID,
		Message: saved,
	}
	c.Broadcast.BroadcastToRoom(ctx, saved.SenderID, ev)
	c.Broadcast.BroadcastToRoom(ctx, saved.ReceiverID, ev)

	// The sender stopped typing by definition.
	c.Broadcast.BroadcastToRoom(ctx, saved.ChatID, ChatEvent{
		Type:   EventTyping,
		ChatID: saved.ChatID,
		UserID: saved.SenderID,
		Typing: false,
	})

	return saved, nil
}

// notifyReceiver records the receiver's notification. Fire-and-forget:
// failures are logged and never surfaced to the message sender.
func (c *ChatCoordinator) notifyReceiver(ctx context.Context, msg *models.Message) {
	kind := models.NotificationMessage
	title := fmt.Sprintf("New message from your %s", strings.ToLower(string(msg.SenderKind)))
	if msg.Text == "" {
		kind = models.NotificationMedia
		title = fmt.Sprintf("New media from your %s", strings.ToLower(string(msg.SenderKind)))
	}

	n := &models.Notification{
		ReceiverID: msg.ReceiverID,
		Type:       kind,
		Title:      title,
		ChatID:     msg.ChatID,
		MessageID:  msg.ID.Hex(),
		SenderID:   msg.SenderID,
		CreatedAt:  msg.Timestamp,
	}
	if err := c.Notifications.Create(ctx, n); err != nil {
		log.Printf("chat: notification for %s failed: %v", msg.ReceiverID, err)
	}
}

// GetMessages returns the chat's visible history in ascending timestamp
// order and resets the requesting user's unread counter. The reset is part
// of the read contract; there is no peek-without-acknowledge mode.
func (c *ChatCoordinator) GetMessages(ctx context.Context, chatID, requestingUserID string) ([]models.Message, error) {
	if chatID == "" || requestingUserID == "" {
		return nil, ErrValidationFailed
	}

	msgs, err := c.Messages.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: load messages: %v", ErrPersistenceFailed, err)
	}

	if err := c.ChatLists.ResetUnread(ctx, requestingUserID, chatID); err != nil {
		// The history is already fetched; losing the counter reset is
		// recoverable on the next read.
		log.Printf("chat: unread reset for %s/%s failed: %v", requestingUserID, chatID, err)
	}

	return msgs, nil
}

// GetChatList returns the user's conversation index with each counterpart's
// display fields resolved, or nil when the user has no chats yet.
func (c *ChatCoordinator) GetChatList(ctx context.Context, userID string) (*models.ChatListEntry, error) {
	if userID == "" {
		return nil, ErrValidationFailed
	}

	entry, err := c.ChatLists.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load chat list: %v", ErrPersistenceFailed, err)
	}
	if entry == nil {
		return nil, nil
	}

	for i := range entry.Chats {
		s := &entry.Chats[i]
		contact, err := c.Identities.Resolve(ctx, s.ContactID, s.ContactKind)
		if err != nil {
			log.Printf("chat: resolve contact %s (%s) failed: %v", s.ContactID, s.ContactKind, err)
			continue
		}
		s.Contact = contact
	}

	return entry, nil
}

// ChatRoomIDs returns the ids of every chat in the user's list, for room
// rejoining on connect. No identity joins, no unread side effects.
func (c *ChatCoordinator) ChatRoomIDs(ctx context.Context, userID string) ([]string, error) {
	entry, err := c.ChatLists.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load chat list: %v", ErrPersistenceFailed, err)
	}
	if entry == nil {
		return nil, nil
	}

	ids := make([]string, 0, len(entry.Chats))
	for _, s := range entry.Chats {
		ids = append(ids, s.ChatID)
	}
	return ids, nil
}

// AddReaction sets the user's reaction on a message, replacing any earlier
// reaction by the same user. Soft-deleted messages cannot be reacted to.
func (c *ChatCoordinator) AddReaction(ctx context.Context, messageID, userID, emoji string) (*models.Message, error) {
	if messageID == "" || userID == "" {
		return nil, ErrValidationFailed
	}
	if !models.AllowedReactions[emoji] {
		return nil, ErrValidationFailed
	}

	msg, err := c.Messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, ErrNotFound
	}

	if err := c.Messages.UpsertReaction(ctx, msg.ChatID, messageID, userID, emoji); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: save reaction: %v", ErrPersistenceFailed, err)
	}

	updated, err := c.Messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	ev := ChatEvent{
		Type:      EventMessageReaction,
		ChatID:    msg.ChatID,
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	}
	c.Broadcast.BroadcastToRoom(ctx, msg.SenderID, ev)
	c.Broadcast.BroadcastToRoom(ctx, msg.ReceiverID, ev)

	return updated, nil
}

// DeleteMessage soft-deletes a message. Authorization is ownership-based:
// only the sender may delete, whatever their role.
func (c *ChatCoordinator) DeleteMessage(ctx context.Context, messageID, requestingUserID string) (*models.Message, error) {
	if messageID == "" || requestingUserID == "" {
		return nil, ErrValidationFailed
	}

	msg, err := c.Messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requestingUserID {
		return nil, ErrUnauthorized
	}

	if err := c.Messages.MarkDeleted(ctx, msg.ChatID, messageID); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: delete message: %v", ErrPersistenceFailed, err)
	}
	msg.IsDeleted = true

	ev := ChatEvent{
		Type:      EventMessageDeleted,
		ChatID:    msg.ChatID,
		MessageID: messageID,
	}
	c.Broadcast.BroadcastToRoom(ctx, msg.SenderID, ev)
	c.Broadcast.BroadcastToRoom(ctx, msg.ReceiverID, ev)

	return msg, nil
}
