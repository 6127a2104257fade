package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"social-backend/internal/models"
)

const cacheKeyPrefix = "displayinfo:"

// CachedDirectory serves display info from redis and falls back to next on
// a miss or on any redis failure.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient parses REDIS_URL style urls and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, client: client, ttl: ttl}
}

func (d *CachedDirectory) DisplayInfo(ctx context.Context, userID string) (*models.DisplayInfo, error) {
	key := cacheKeyPrefix + userID

	raw, err := d.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var info models.DisplayInfo
		if jsonErr := json.Unmarshal([]byte(raw), &info); jsonErr == nil {
			return &info, nil
		}
		log.Warn().Str("key", key).Msg("discarding malformed cached display info")
	case err != redis.Nil:
		log.Warn().Err(err).Str("key", key).Msg("display cache read failed")
	}

	info, err := d.next.DisplayInfo(ctx, userID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(info); err == nil {
		if err := d.client.Set(ctx, key, payload, d.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("display cache write failed")
		}
	}
	return info, nil
}
