package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/edulink/edulink-backend/internal/models"
)

const (
	chatListsCollection = "chat_lists"
	chatPairsCollection = "chat_pairs"
)

// chatPair is the registry row that pins one chat id per (teacher, student)
// pair. The unique index on the pair makes initiation idempotent under races.
type chatPair struct {
	TeacherID string    `bson:"teacher_id"`
	StudentID string    `bson:"student_id"`
	ChatID    string    `bson:"chat_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoChatListStore keeps one chat-list document per user plus the pair
// registry. All counter and summary updates are atomic per-document
// operators ($inc, $set, $push) so concurrent messages never lose updates.
type MongoChatListStore struct {
	db *mongo.Database
}

func NewMongoChatListStore(db *mongo.Database) *MongoChatListStore {
	return &MongoChatListStore{db: db}
}

// EnsureChatListIndexes configures the chat_lists and chat_pairs indexes.
// Called on startup from main after Mongo has connected.
func (s *MongoChatListStore) EnsureChatListIndexes(ctx context.Context) error {
	lists := s.db.Collection(chatListsCollection)
	if _, err := lists.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetName("idx_user").SetUnique(true),
	}); err != nil {
		return err
	}

	pairs := s.db.Collection(chatPairsCollection)
	_, err := pairs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "teacher_id", Value: 1},
			{Key: "student_id", Value: 1},
		},
		Options: options.Index().SetName("idx_pair").SetUnique(true),
	})
	return err
}

// FindOrCreate returns the user's chat-list row, creating an empty one when
// the user has none yet. Upsert keyed on user_id, so repeats are harmless.
func (s *MongoChatListStore) FindOrCreate(ctx context.Context, userID string, kind models.UserKind) (*models.ChatListEntry, error) {
	col := s.db.Collection(chatListsCollection)

	res := col.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": bson.M{
			"user_id":   userID,
			"user_kind": kind,
			"chats":     []models.ChatSummary{},
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var entry models.ChatListEntry
	if err := res.Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Find returns the user's chat-list row, or nil when absent.
func (s *MongoChatListStore) Find(ctx context.Context, userID string) (*models.ChatListEntry, error) {
	col := s.db.Collection(chatListsCollection)

	var entry models.ChatListEntry
	err := col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpsertSummary updates the preview fields of the user's summary for the
// chat, or appends a fresh summary on first contact. The in-place branch
// leaves unread_count alone; only IncrementUnread/ResetUnread touch it.
func (s *MongoChatListStore) UpsertSummary(ctx context.Context, userID string, kind models.UserKind, summary models.ChatSummary) error {
	col := s.db.Collection(chatListsCollection)

	res, err := col.UpdateOne(ctx,
		bson.M{"user_id": userID, "chats.chat_id": summary.ChatID},
		bson.M{"$set": bson.M{
			"chats.$.last_message": summary.LastMessage,
			"chats.$.timestamp":    summary.Timestamp,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// No summary for this chat yet; push one, creating the row if needed.
	_, err = col.UpdateOne(ctx,
		bson.M{"user_id": userID, "chats.chat_id": bson.M{"$ne": summary.ChatID}},
		bson.M{
			"$setOnInsert": bson.M{"user_kind": kind},
			"$push":        bson.M{"chats": summary},
		},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the race to another writer that pushed the summary first;
		// retry the in-place update so our preview still lands.
		_, err = col.UpdateOne(ctx,
			bson.M{"user_id": userID, "chats.chat_id": summary.ChatID},
			bson.M{"$set": bson.M{
				"chats.$.last_message": summary.LastMessage,
				"chats.$.timestamp":    summary.Timestamp,
			}},
		)
	}
	return err
}

// IncrementUnread adds one to the user's unread counter for the chat.
func (s *MongoChatListStore) IncrementUnread(ctx context.Context, userID, chatID string) error {
	col := s.db.Collection(chatListsCollection)
	_, err := col.UpdateOne(ctx,
		bson.M{"user_id": userID, "chats.chat_id": chatID},
		bson.M{"$inc": bson.M{"chats.$.unread_count": 1}},
	)
	return err
}

// ResetUnread zeroes the user's unread counter for the chat.
func (s *MongoChatListStore) ResetUnread(ctx context.Context, userID, chatID string) error {
	col := s.db.Collection(chatListsCollection)
	_, err := col.UpdateOne(ctx,
		bson.M{"user_id": userID, "chats.chat_id": chatID},
		bson.M{"$set": bson.M{"chats.$.unread_count": 0}},
	)
	return err
}

// FindPair returns the chat id minted for the (teacher, student) pair, or "".
func (s *MongoChatListStore) FindPair(ctx context.Context, teacherID, studentID string) (string, error) {
	col := s.db.Collection(chatPairsCollection)

	var pair chatPair
	err := col.FindOne(ctx, bson.M{"teacher_id": teacherID, "student_id": studentID}).Decode(&pair)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return pair.ChatID, nil
}

// MintPair records chatID for the pair unless one already exists and returns
// the winning id. Concurrent initiations race on the unique pair index and
// both observe the same winner.
func (s *MongoChatListStore) MintPair(ctx context.Context, teacherID, studentID, chatID string) (string, error) {
	col := s.db.Collection(chatPairsCollection)

	res := col.FindOneAndUpdate(ctx,
		bson.M{"teacher_id": teacherID, "student_id": studentID},
		bson.M{"$setOnInsert": bson.M{
			"teacher_id": teacherID,
			"student_id": studentID,
			"chat_id":    chatID,
			"created_at": time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var pair chatPair
	if err := res.Decode(&pair); err != nil {
		return "", err
	}
	return pair.ChatID, nil
}
