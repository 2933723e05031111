package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/edulink/edulink-backend/internal/models"
)

// In-memory fakes for the store interfaces, mirroring the atomic-update
// semantics of the Mongo adapters.

type memMessageStore struct {
	mu         sync.Mutex
	msgs       map[string]*models.Message
	clock      time.Time
	failCreate bool
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{
		msgs:  make(map[string]*models.Message),
		clock: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memMessageStore) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return nil, errors.New("store down")
	}
	s.clock = s.clock.Add(time.Millisecond)
	msg.ID = primitive.NewObjectID()
	msg.Timestamp = s.clock
	cp := *msg
	s.msgs[msg.ID.Hex()] = &cp
	return msg, nil
}

func (s *memMessageStore) FindByChatID(ctx context.Context, chatID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.msgs {
		if m.ChatID == chatID && !m.IsDeleted {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *memMessageStore) FindByID(ctx context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memMessageStore) UpsertReaction(ctx context.Context, chatID, id, userID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok || m.IsDeleted {
		return ErrNotFound
	}
	for i := range m.Reactions {
		if m.Reactions[i].UserID == userID {
			m.Reactions[i].Emoji = emoji
			return nil
		}
	}
	m.Reactions = append(m.Reactions, models.Reaction{UserID: userID, Emoji: emoji})
	return nil
}

func (s *memMessageStore) MarkDeleted(ctx context.Context, chatID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return ErrNotFound
	}
	m.IsDeleted = true
	return nil
}

type memChatListStore struct {
	mu         sync.Mutex
	entries    map[string]*models.ChatListEntry
	pairs      map[string]string
	failUpsert map[string]bool // user id -> force UpsertSummary failure
}

func newMemChatListStore() *memChatListStore {
	return &memChatListStore{
		entries:    make(map[string]*models.ChatListEntry),
		pairs:      make(map[string]string),
		failUpsert: make(map[string]bool),
	}
}

func pairKey(teacherID, studentID string) string { return teacherID + "|" + studentID }

func (s *memChatListStore) FindOrCreate(ctx context.Context, userID string, kind models.UserKind) (*models.ChatListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		e = &models.ChatListEntry{UserID: userID, UserKind: kind}
		s.entries[userID] = e
	}
	cp := *e
	return &cp, nil
}

func (s *memChatListStore) Find(ctx context.Context, userID string) (*models.ChatListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return nil, nil
	}
	cp := *e
	cp.Chats = append([]models.ChatSummary(nil), e.Chats...)
	return &cp, nil
}

func (s *memChatListStore) UpsertSummary(ctx context.Context, userID string, kind models.UserKind, summary models.ChatSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert[userID] {
		return errors.New("store down")
	}
	e, ok := s.entries[userID]
	if !ok {
		e = &models.ChatListEntry{UserID: userID, UserKind: kind}
		s.entries[userID] = e
	}
	for i := range e.Chats {
		if e.Chats[i].ChatID == summary.ChatID {
			e.Chats[i].LastMessage = summary.LastMessage
			e.Chats[i].Timestamp = summary.Timestamp
			return nil
		}
	}
	e.Chats = append(e.Chats, summary)
	return nil
}

func (s *memChatListStore) IncrementUnread(ctx context.Context, userID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return nil
	}
	for i := range e.Chats {
		if e.Chats[i].ChatID == chatID {
			e.Chats[i].UnreadCount++
		}
	}
	return nil
}

func (s *memChatListStore) ResetUnread(ctx context.Context, userID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return nil
	}
	for i := range e.Chats {
		if e.Chats[i].ChatID == chatID {
			e.Chats[i].UnreadCount = 0
		}
	}
	return nil
}

func (s *memChatListStore) FindPair(ctx context.Context, teacherID, studentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs[pairKey(teacherID, studentID)], nil
}

func (s *memChatListStore) MintPair(ctx context.Context, teacherID, studentID, chatID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(teacherID, studentID)
	if existing, ok := s.pairs[key]; ok {
		return existing, nil
	}
	s.pairs[key] = chatID
	return chatID, nil
}

func (s *memChatListStore) unread(userID, chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return -1
	}
	for _, c := range e.Chats {
		if c.ChatID == chatID {
			return c.UnreadCount
		}
	}
	return -1
}

func (s *memChatListStore) lastMessage(userID, chatID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return ""
	}
	for _, c := range e.Chats {
		if c.ChatID == chatID {
			return c.LastMessage
		}
	}
	return ""
}

type memNotificationSink struct {
	mu      sync.Mutex
	created []models.Notification
	fail    bool
}

func (s *memNotificationSink) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.created = append(s.created, *n)
	return nil
}

type memResolver struct {
	contacts map[string]models.Contact
}

func (r *memResolver) Resolve(ctx context.Context, id string, kind models.UserKind) (*models.Contact, error) {
	c, ok := r.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

type recordedEvent struct {
	Room  string
	Event ChatEvent
}

type memBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *memBroadcaster) BroadcastToRoom(ctx context.Context, roomID string, ev ChatEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Room: roomID, Event: ev})
}

func (b *memBroadcaster) byType(eventType string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.Event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	coordinator *ChatCoordinator
	messages    *memMessageStore
	chatLists   *memChatListStore
	sink        *memNotificationSink
	broadcast   *memBroadcaster
	teacherID   string
	studentID   string
}

func newFixture() *fixture {
	messages := newMemMessageStore()
	chatLists := newMemChatListStore()
	sink := &memNotificationSink{}
	broadcast := &memBroadcaster{}
	teacherID := uuid.NewString()
	studentID := uuid.NewString()
	resolver := &memResolver{contacts: map[string]models.Contact{
		teacherID: {ID: teacherID, Kind: models.KindTeacher, Name: "Ms. Verma", AvatarURL: "https://cdn.example.com/t.png"},
		studentID: {ID: studentID, Kind: models.KindStudent, Name: "Arjun", AvatarURL: "https://cdn.example.com/s.png"},
	}}
	return &fixture{
		coordinator: NewChatCoordinator(messages, chatLists, sink, resolver, broadcast),
		messages:    messages,
		chatLists:   chatLists,
		sink:        sink,
		broadcast:   broadcast,
		teacherID:   teacherID,
		studentID:   studentID,
	}
}

func (f *fixture) mustInitiate(t *testing.T) string {
	t.Helper()
	chatID, err := f.coordinator.InitiateChat(context.Background(), f.teacherID, f.studentID)
	if err != nil {
		t.Fatalf("InitiateChat: %v", err)
	}
	return chatID
}

func (f *fixture) mustSend(t *testing.T, chatID, text string) *models.Message {
	t.Helper()
	msg, err := f.coordinator.SaveMessage(context.Background(), SaveMessageInput{
		ChatID:       chatID,
		SenderID:     f.teacherID,
		SenderKind:   models.KindTeacher,
		ReceiverID:   f.studentID,
		ReceiverKind: models.KindStudent,
		Text:         text,
	})
	if err != nil {
		t.Fatalf("SaveMessage(%q): %v", text, err)
	}
	return msg
}

func TestInitiateChatIdempotent(t *testing.T) {
	f := newFixture()

	first := f.mustInitiate(t)
	second := f.mustInitiate(t)
	if first != second {
		t.Fatalf("repeated initiation minted a new chat id: %s vs %s", first, second)
	}

	for _, userID := range []string{f.teacherID, f.studentID} {
		entry, err := f.coordinator.ChatLists.Find(context.Background(), userID)
		if err != nil {
			t.Fatalf("Find(%s): %v", userID, err)
		}
		if entry == nil || len(entry.Chats) != 1 {
			t.Fatalf("expected exactly one summary for %s, got %+v", userID, entry)
		}
		if entry.Chats[0].LastMessage != "" || entry.Chats[0].UnreadCount != 0 {
			t.Fatalf("fresh summary should be empty with zero unread, got %+v", entry.Chats[0])
		}
	}
}

func TestInitiateChatInvalidIdentity(t *testing.T) {
	f := newFixture()

	if _, err := f.coordinator.InitiateChat(context.Background(), "not-a-uuid", f.studentID); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
	if _, err := f.coordinator.InitiateChat(context.Background(), f.teacherID, ""); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity for empty student id, got %v", err)
	}
}

func TestInitiateChatBroadcastsNewChat(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)

	events := f.broadcast.byType(EventNewChat)
	if len(events) != 2 {
		t.Fatalf("expected newChat to both participants, got %d events", len(events))
	}
	rooms := map[string]bool{}
	for _, e := range events {
		rooms[e.Room] = true
		if e.Event.ChatID != chatID {
			t.Fatalf("newChat carries wrong chat id: %s", e.Event.ChatID)
		}
	}
	if !rooms[f.teacherID] || !rooms[f.studentID] {
		t.Fatalf("newChat missed a participant room: %v", rooms)
	}
}

func TestInitiateChatStoreFailure(t *testing.T) {
	f := newFixture()
	f.chatLists.failUpsert[f.studentID] = true

	_, err := f.coordinator.InitiateChat(context.Background(), f.teacherID, f.studentID)
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
	if len(f.broadcast.byType(EventNewChat)) != 0 {
		t.Fatal("failed initiation must not broadcast")
	}

	// Retry succeeds once the store recovers and repairs the missing row.
	f.chatLists.failUpsert[f.studentID] = false
	chatID := f.mustInitiate(t)
	if chatID == "" {
		t.Fatal("retry should mint or recover a chat id")
	}
	for _, userID := range []string{f.teacherID, f.studentID} {
		entry, err := f.chatLists.Find(context.Background(), userID)
		if err != nil || entry == nil || len(entry.Chats) != 1 {
			t.Fatalf("retry must leave one summary for %s, got %+v (%v)", userID, entry, err)
		}
	}
}

func TestMediaMessagePreview(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)

	_, err := f.coordinator.SaveMessage(context.Background(), SaveMessageInput{
		ChatID:       chatID,
		SenderID:     f.teacherID,
		SenderKind:   models.KindTeacher,
		ReceiverID:   f.studentID,
		ReceiverKind: models.KindStudent,
		MediaURL:     "https://cdn.example.com/worksheet.pdf",
		MediaKind:    models.MediaDocument,
	})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	for _, userID := range []string{f.teacherID, f.studentID} {
		if got := f.chatLists.lastMessage(userID, chatID); got != models.MediaMessagePreview {
			t.Fatalf("preview for %s = %q, want %q", userID, got, models.MediaMessagePreview)
		}
	}
}

func TestUnreadAccounting(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	ctx := context.Background()

	f.mustSend(t, chatID, "hi")

	if got := f.chatLists.unread(f.studentID, chatID); got != 1 {
		t.Fatalf("receiver unread = %d, want 1", got)
	}
	if got := f.chatLists.unread(f.teacherID, chatID); got != 0 {
		t.Fatalf("sender unread = %d, want 0", got)
	}

	f.mustSend(t, chatID, "are you there?")
	if got := f.chatLists.unread(f.studentID, chatID); got != 2 {
		t.Fatalf("receiver unread after second message = %d, want 2", got)
	}

	// Reading resets the reader's counter only.
	if _, err := f.coordinator.GetMessages(ctx, chatID, f.studentID); err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if got := f.chatLists.unread(f.studentID, chatID); got != 0 {
		t.Fatalf("receiver unread after read = %d, want 0", got)
	}
	if got := f.chatLists.unread(f.teacherID, chatID); got != 0 {
		t.Fatalf("sender unread after receiver read = %d, want 0", got)
	}
}

func TestReactionReplacesByReactor(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	msg := f.mustSend(t, chatID, "hello")
	ctx := context.Background()

	if _, err := f.coordinator.AddReaction(ctx, msg.ID.Hex(), f.studentID, "👍"); err != nil {
		t.Fatalf("first reaction: %v", err)
	}
	updated, err := f.coordinator.AddReaction(ctx, msg.ID.Hex(), f.studentID, "❤️")
	if err != nil {
		t.Fatalf("second reaction: %v", err)
	}

	if len(updated.Reactions) != 1 {
		t.Fatalf("expected one reaction entry, got %d", len(updated.Reactions))
	}
	if updated.Reactions[0].Emoji != "❤️" || updated.Reactions[0].UserID != f.studentID {
		t.Fatalf("unexpected reaction: %+v", updated.Reactions[0])
	}
}

func TestReactionValidation(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	msg := f.mustSend(t, chatID, "hello")
	ctx := context.Background()

	if _, err := f.coordinator.AddReaction(ctx, msg.ID.Hex(), f.studentID, "🦄"); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("unknown emoji: expected ErrValidationFailed, got %v", err)
	}
	if _, err := f.coordinator.AddReaction(ctx, primitive.NewObjectID().Hex(), f.studentID, "👍"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing message: expected ErrNotFound, got %v", err)
	}

	// Deleted messages cannot be reacted to.
	if _, err := f.coordinator.DeleteMessage(ctx, msg.ID.Hex(), f.teacherID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if _, err := f.coordinator.AddReaction(ctx, msg.ID.Hex(), f.studentID, "👍"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted message: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsSoftAndExclusionary(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	msg := f.mustSend(t, chatID, "to be removed")
	keep := f.mustSend(t, chatID, "to be kept")
	ctx := context.Background()

	deleted, err := f.coordinator.DeleteMessage(ctx, msg.ID.Hex(), f.teacherID)
	if err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if !deleted.IsDeleted {
		t.Fatal("returned message should carry is_deleted=true")
	}

	msgs, err := f.coordinator.GetMessages(ctx, chatID, f.studentID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != keep.ID {
		t.Fatalf("history should hold only the kept message, got %d", len(msgs))
	}

	// Direct lookup still sees the record with content intact.
	raw, err := f.messages.FindByID(ctx, msg.ID.Hex())
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !raw.IsDeleted || raw.Text != "to be removed" {
		t.Fatalf("soft delete must retain content, got %+v", raw)
	}
}

func TestDeleteUnauthorized(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	msg := f.mustSend(t, chatID, "teacher's message")
	ctx := context.Background()

	if _, err := f.coordinator.DeleteMessage(ctx, msg.ID.Hex(), f.studentID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	raw, err := f.messages.FindByID(ctx, msg.ID.Hex())
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if raw.IsDeleted {
		t.Fatal("unauthorized delete must leave the flag unset")
	}
}

func TestMessageOrdering(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)

	var want []string
	for i := 0; i < 5; i++ {
		text := fmt.Sprintf("msg %d", i)
		f.mustSend(t, chatID, text)
		want = append(want, text)
	}

	msgs, err := f.coordinator.GetMessages(context.Background(), chatID, f.studentID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, m := range msgs {
		if m.Text != want[i] {
			t.Fatalf("position %d = %q, want %q", i, m.Text, want[i])
		}
		if i > 0 && !msgs[i-1].Timestamp.Before(m.Timestamp) {
			t.Fatalf("timestamps not ascending at position %d", i)
		}
	}
}

func TestSaveMessageValidation(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	ctx := context.Background()

	// Neither text nor media.
	_, err := f.coordinator.SaveMessage(ctx, SaveMessageInput{
		ChatID:       chatID,
		SenderID:     f.teacherID,
		SenderKind:   models.KindTeacher,
		ReceiverID:   f.studentID,
		ReceiverKind: models.KindStudent,
		Text:         "   ",
	})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}

	// Sender equals receiver.
	_, err = f.coordinator.SaveMessage(ctx, SaveMessageInput{
		ChatID:       chatID,
		SenderID:     f.teacherID,
		SenderKind:   models.KindTeacher,
		ReceiverID:   f.teacherID,
		ReceiverKind: models.KindStudent,
		Text:         "hi me",
	})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("self-message: expected ErrValidationFailed, got %v", err)
	}

	// Media without a kind.
	_, err = f.coordinator.SaveMessage(ctx, SaveMessageInput{
		ChatID:       chatID,
		SenderID:     f.teacherID,
		SenderKind:   models.KindTeacher,
		ReceiverID:   f.studentID,
		ReceiverKind: models.KindStudent,
		MediaURL:     "https://cdn.example.com/x.bin",
	})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("media without kind: expected ErrValidationFailed, got %v", err)
	}

	if msgs, _ := f.coordinator.Messages.FindByChatID(ctx, chatID); len(msgs) != 0 {
		t.Fatalf("failed validation must write nothing, found %d messages", len(msgs))
	}
	if len(f.broadcast.byType(EventReceiveMessage)) != 0 {
		t.Fatal("failed validation must broadcast nothing")
	}
}

func TestSaveMessagePersistenceFailure(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	f.messages.failCreate = true

	_, err := f.coordinator.SaveMessage(context.Background(), SaveMessageInput{
		ChatID:       chatID,
		SenderID:     f.teacherID,
		SenderKind:   models.KindTeacher,
		ReceiverID:   f.studentID,
		ReceiverKind: models.KindStudent,
		Text:         "hi",
	})
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
	if len(f.broadcast.byType(EventReceiveMessage)) != 0 {
		t.Fatal("no broadcasts when persistence fails")
	}
	if got := f.chatLists.unread(f.studentID, chatID); got != 0 {
		t.Fatalf("unread must be untouched on failure, got %d", got)
	}
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	f.sink.fail = true

	msg := f.mustSend(t, chatID, "still delivered")
	if msg.ID.IsZero() {
		t.Fatal("message should be persisted despite notification failure")
	}
	if len(f.broadcast.byType(EventReceiveMessage)) != 2 {
		t.Fatal("broadcast should still reach both participant rooms")
	}
}

func TestSaveMessageFanOut(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	msg := f.mustSend(t, chatID, "hello")

	recv := f.broadcast.byType(EventReceiveMessage)
	if len(recv) != 2 {
		t.Fatalf("receiveMessage events = %d, want 2", len(recv))
	}
	rooms := map[string]bool{}
	for _, e := range recv {
		rooms[e.Room] = true
		if e.Event.Message == nil || e.Event.Message.ID != msg.ID {
			t.Fatalf("receiveMessage must carry the saved message")
		}
	}
	if !rooms[f.teacherID] || !rooms[f.studentID] {
		t.Fatalf("receiveMessage missed a room: %v", rooms)
	}

	typing := f.broadcast.byType(EventTyping)
	if len(typing) != 1 || typing[0].Room != chatID || typing[0].Event.Typing {
		t.Fatalf("expected a typing:false reset to the chat room, got %+v", typing)
	}

	// Notification lands for the receiver.
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if len(f.sink.created) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.sink.created))
	}
	n := f.sink.created[0]
	if n.ReceiverID != f.studentID || n.Type != models.NotificationMessage || n.ChatID != chatID {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestGetChatListResolvesContacts(t *testing.T) {
	f := newFixture()
	chatID := f.mustInitiate(t)
	f.mustSend(t, chatID, "hello")

	entry, err := f.coordinator.GetChatList(context.Background(), f.studentID)
	if err != nil {
		t.Fatalf("GetChatList: %v", err)
	}
	if entry == nil || len(entry.Chats) != 1 {
		t.Fatalf("expected one chat, got %+v", entry)
	}
	c := entry.Chats[0]
	if c.Contact == nil || c.Contact.Name != "Ms. Verma" || c.Contact.Kind != models.KindTeacher {
		t.Fatalf("counterpart not resolved: %+v", c.Contact)
	}
	if c.LastMessage != "hello" {
		t.Fatalf("preview = %q, want %q", c.LastMessage, "hello")
	}

	// Absent user: nil entry, no error.
	entry, err = f.coordinator.GetChatList(context.Background(), uuid.NewString())
	if err != nil || entry != nil {
		t.Fatalf("absent user should yield (nil, nil), got (%v, %v)", entry, err)
	}
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	chatID := f.mustInitiate(t)

	msg, err := f.coordinator.SaveMessage(ctx, SaveMessageInput{
		ChatID:       chatID,
		SenderID:     f.teacherID,
		SenderKind:   models.KindTeacher,
		ReceiverID:   f.studentID,
		ReceiverKind: models.KindStudent,
		Text:         "Hello",
	})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if msg.IsDeleted || len(msg.Reactions) != 0 || msg.Timestamp.IsZero() {
		t.Fatalf("unexpected message defaults: %+v", msg)
	}

	for _, userID := range []string{f.teacherID, f.studentID} {
		if got := f.chatLists.lastMessage(userID, chatID); got != "Hello" {
			t.Fatalf("preview for %s = %q, want Hello", userID, got)
		}
	}
	if got := f.chatLists.unread(f.studentID, chatID); got != 1 {
		t.Fatalf("student unread = %d, want 1", got)
	}

	msgs, err := f.coordinator.GetMessages(ctx, chatID, f.studentID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Fatalf("history should hold exactly the sent message")
	}
	if got := f.chatLists.unread(f.studentID, chatID); got != 0 {
		t.Fatalf("student unread after read = %d, want 0", got)
	}
}
