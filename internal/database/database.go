package database

import (
	"context"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Client *mongo.Client
var DB *mongo.Database

// Connect establishes the MongoDB connection used for chat messages,
// chat lists and notifications.
func Connect(mongoURI string) error {
	// Longer timeout for hosted clusters (Atlas)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return err
	}

	Client = client
	DB = client.Database(databaseName(mongoURI))

	log.Println("✅ Connected to MongoDB")
	return nil
}

// databaseName extracts the database name from the connection string,
// falling back to "edulink" when the URI carries none.
func databaseName(mongoURI string) string {
	dbName := "edulink"
	parts := strings.Split(mongoURI, "/")
	if len(parts) > 3 {
		dbPart := strings.Split(parts[len(parts)-1], "?")[0]
		if dbPart != "" {
			dbName = dbPart
		}
	}
	return dbName
}

func Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Client.Disconnect(ctx)
}
