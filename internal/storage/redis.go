package storage

import (
	"context"
	"fmt"

	"github.com/minus-twelve/warden/types"
	"github.com/redis/go-redis/v9"
)

// Dial connects to redis and checks the server answers before handing the
// client back.
func Dial(ctx context.Context, cfg types.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}

	return client, nil
}
