package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/dilshadmohammed/quiz-ai/internal/config"
)

// NewRedisClient создает новый клиент Redis на основе конфигурации
// и проверяет подключение пингом.
func NewRedisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis configuration error: Addr must be provided")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis (addr: %s): %w", cfg.Addr, err)
	}

	return client, nil
}
