package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/edulink/edulink-backend/internal/models"
)

const notificationsCollection = "notifications"

// MongoNotificationSink writes one notification document per delivered
// message, for the receiver's offline notification feed. The coordinator
// treats Create as fire-and-forget; a failed insert is logged there and
// never fails the message.
type MongoNotificationSink struct {
	db *mongo.Database
}

func NewMongoNotificationSink(db *mongo.Database) *MongoNotificationSink {
	return &MongoNotificationSink{db: db}
}

func (s *MongoNotificationSink) Create(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	col := s.db.Collection(notificationsCollection)
	_, err := col.InsertOne(ctx, n)
	return err
}
