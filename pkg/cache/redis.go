package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/skill-training-api/pkg/config"
)

// KeyPrefix namespaces every key this service writes to Redis.
const KeyPrefix = "skilltraining"

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Key joins parts under KeyPrefix. Empty parts are kept as "-" so positional keys stay unambiguous.
func Key(parts ...string) string {
	normalized := make([]string, 0, len(parts)+1)
	normalized = append(normalized, KeyPrefix)
	for _, part := range parts {
		if part == "" {
			part = "-"
		}
		normalized = append(normalized, part)
	}
	return strings.Join(normalized, ":")
}
