package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/storebot/core/logger"
)

// RedisConfig holds Redis connection settings for the session store.
type RedisConfig struct {
	Host     string `yaml:"host" envconfig:"REDIS_DB_HOST"`
	Port     string `yaml:"port" envconfig:"REDIS_DB_PORT"`
	Password string `yaml:"password" envconfig:"REDIS_DB_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB_INDEX"`
	// KeyPrefix namespaces session keys; empty keeps bare user ids as keys.
	KeyPrefix string `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`
}

// Addr returns host:port with localhost:6379 defaults.
func (c RedisConfig) Addr() string {
	host, port := c.Host, c.Port
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	return net.JoinHostPort(host, port)
}

// ConnectRedis opens a Redis client and verifies connectivity with PING.
func ConnectRedis(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx).Err()
	took := time.Since(start)
	if err != nil {
		_ = client.Close()
		logger.DB.Error("redis connect failed",
			slog.String("event", "redis.connect"),
			slog.String("host", cfg.Addr()),
			slog.Int("db", cfg.DB),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.DB.Info("redis connected",
		slog.String("event", "redis.connect"),
		slog.String("host", cfg.Addr()),
		slog.Int("db", cfg.DB),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return client, nil
}
