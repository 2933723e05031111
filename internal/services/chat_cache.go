package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edulink/edulink-backend/internal/models"
)

const (
	chatRecentKeyPrefix = "chat:recent:"
	chatRecentMaxLen    = 50
	chatRecentTTL       = 1 * time.Hour
)

// RecentMessageCache keeps the tail of each chat's message log in Redis so
// initial history loads skip Mongo. It only serves a chat when the whole
// visible history fits in the cached window; reaction and delete updates
// invalidate the chat's entry. A nil cache is a no-op.
type RecentMessageCache struct {
	redis *redis.Client
}

func NewRecentMessageCache(redisClient *redis.Client) *RecentMessageCache {
	return &RecentMessageCache{redis: redisClient}
}

func chatRecentKey(chatID string) string {
	return chatRecentKeyPrefix + chatID
}

// Push appends a freshly saved message to the chat's cache (newest at head).
// The append only lands while a window is already cached (LPUSHX); after an
// invalidation or TTL expiry the key stays absent until Warm rebuilds it from
// a full read, so the cache never re-seeds itself with a partial history.
// Outgrowing the window drops the cache rather than trimming it, since a
// trimmed list would no longer cover the whole history either.
func (c *RecentMessageCache) Push(msg models.Message) {
	if c == nil || c.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := chatRecentKey(msg.ChatID)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	pipe := c.redis.Pipeline()
	grown := pipe.LPushX(ctx, key, data)
	pipe.Expire(ctx, key, chatRecentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("chat cache: push failed for chat %s: %v", msg.ChatID, err)
		return
	}
	if grown.Val() > chatRecentMaxLen {
		c.Invalidate(ctx, msg.ChatID)
	}
}

// Get returns the chat's cached history (oldest-first) when present.
func (c *RecentMessageCache) Get(ctx context.Context, chatID string) ([]models.Message, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}

	raw, err := c.redis.LRange(ctx, chatRecentKey(chatID), 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	msgs := make([]models.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m models.Message
		if json.Unmarshal([]byte(raw[i]), &m) != nil {
			return nil, false
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

// Warm stores a freshly fetched history (oldest-first) for subsequent loads.
// Histories longer than the window are not cached.
func (c *RecentMessageCache) Warm(ctx context.Context, chatID string, msgs []models.Message) {
	if c == nil || c.redis == nil || len(msgs) == 0 || len(msgs) > chatRecentMaxLen {
		return
	}

	key := chatRecentKey(chatID)
	pipe := c.redis.Pipeline()
	pipe.Del(ctx, key)
	for i := len(msgs) - 1; i >= 0; i-- {
		data, err := json.Marshal(msgs[i])
		if err != nil {
			return
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.Expire(ctx, key, chatRecentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("chat cache: warm failed for chat %s: %v", chatID, err)
	}
}

// Invalidate drops the chat's cached history.
func (c *RecentMessageCache) Invalidate(ctx context.Context, chatID string) {
	if c == nil || c.redis == nil || chatID == "" {
		return
	}
	if err := c.redis.Del(ctx, chatRecentKey(chatID)).Err(); err != nil {
		log.Printf("chat cache: invalidate failed for chat %s: %v", chatID, err)
	}
}
