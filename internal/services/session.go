package services

import (
	"context"
	"encoding/json"

	"github.com/edulink/edulink-backend/internal/database"
	"github.com/edulink/edulink-backend/internal/models"
)

const (
	// SessionKeyPrefix is the Redis key prefix for sessions. The auth
	// service writes these keys at sign-in; this service only reads them.
	SessionKeyPrefix = "session:"
)

// sessionRecord is the value the auth service stores per session token.
type sessionRecord struct {
	UserID   string          `json:"user_id"`
	UserKind models.UserKind `json:"user_kind"`
}

// ValidateSession checks a session token against Redis and returns the
// verified identity. WebSocket connections must pass this before any
// coordinator method runs.
func ValidateSession(ctx context.Context, sessionToken string) (string, models.UserKind, bool, error) {
	if sessionToken == "" {
		return "", "", false, nil
	}

	raw, err := database.RedisClient.Get(ctx, SessionKeyPrefix+sessionToken).Result()
	if err != nil {
		// Missing key and transport errors both mean "not authenticated".
		return "", "", false, nil
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return "", "", false, err
	}
	if !ValidIdentity(rec.UserID, rec.UserKind) {
		return "", "", false, nil
	}

	return rec.UserID, rec.UserKind, true, nil
}
