package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/edulink/edulink-backend/internal/models"
)

const messagesCollection = "chat_messages"

// MongoMessageStore persists chat messages in a flat MongoDB collection,
// one document per message. Reaction and deletion updates use atomic
// update operators so concurrent writers cannot lose each other's changes.
type MongoMessageStore struct {
	db    *mongo.Database
	cache *RecentMessageCache // optional; nil disables caching
}

func NewMongoMessageStore(db *mongo.Database, cache *RecentMessageCache) *MongoMessageStore {
	return &MongoMessageStore{db: db, cache: cache}
}

// EnsureMessageIndexes configures indexes for the chat_messages collection.
// Called on startup from main after Mongo has connected.
func (s *MongoMessageStore) EnsureMessageIndexes(ctx context.Context) error {
	col := s.db.Collection(messagesCollection)

	// Compound index on (chat_id, timestamp) backs ordered history reads.
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "chat_id", Value: 1},
			{Key: "timestamp", Value: 1},
		},
		Options: options.Index().SetName("idx_chat_timestamp"),
	})
	return err
}

// Create persists a message. The timestamp is assigned here, at the moment
// of persistence, so store order is the authoritative message order.
func (s *MongoMessageStore) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	msg.Timestamp = time.Now().UTC()

	col := s.db.Collection(messagesCollection)
	res, err := col.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}

	s.cache.Push(*msg)
	return msg, nil
}

// FindByChatID returns the chat's non-deleted messages, oldest first.
// Serves from the recent cache when it covers the chat.
func (s *MongoMessageStore) FindByChatID(ctx context.Context, chatID string) ([]models.Message, error) {
	if cached, ok := s.cache.Get(ctx, chatID); ok {
		return cached, nil
	}

	col := s.db.Collection(messagesCollection)

	filter := bson.M{
		"chat_id":    chatID,
		"is_deleted": false,
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var msgs []models.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}

	s.cache.Warm(ctx, chatID, msgs)
	return msgs, nil
}

// FindByID returns a message by id, including soft-deleted ones.
func (s *MongoMessageStore) FindByID(ctx context.Context, id string) (*models.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	col := s.db.Collection(messagesCollection)

	var msg models.Message
	err = col.FindOne(ctx, bson.M{"_id": oid}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpsertReaction replaces this reactor's reaction on the message, or pushes
// a new one. Both branches are single atomic updates, so two concurrent
// reactions to the same message cannot lose each other.
func (s *MongoMessageStore) UpsertReaction(ctx context.Context, chatID, id, userID, emoji string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	col := s.db.Collection(messagesCollection)

	// Replace an existing reaction by this reactor.
	res, err := col.UpdateOne(ctx,
		bson.M{"_id": oid, "reactions.user_id": userID},
		bson.M{"$set": bson.M{"reactions.$.emoji": emoji}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		s.cache.Invalidate(ctx, chatID)
		return nil
	}

	// First reaction from this reactor; the is_deleted guard keeps a racing
	// delete from accepting the push.
	res, err = col.UpdateOne(ctx,
		bson.M{"_id": oid, "is_deleted": false},
		bson.M{"$push": bson.M{"reactions": models.Reaction{UserID: userID, Emoji: emoji}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	s.cache.Invalidate(ctx, chatID)
	return nil
}

// MarkDeleted soft-deletes a message. Content and media are retained; the
// message just stops appearing in FindByChatID.
func (s *MongoMessageStore) MarkDeleted(ctx context.Context, chatID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	col := s.db.Collection(messagesCollection)
	res, err := col.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"is_deleted": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	s.cache.Invalidate(ctx, chatID)
	return nil
}
