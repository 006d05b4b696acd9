package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lujainibrahim/dyad-study/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis REDIS_URL로 클라이언트 생성 후 PING 확인
func ConnectRedis(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is empty")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Redis connected successfully", "addr", opts.Addr)

	return client, nil
}
