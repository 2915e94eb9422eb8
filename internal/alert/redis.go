package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bandwidth-guard/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisConfig holds the connection and key layout for the Redis sink
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisSink publishes every measurement and alert as JSON and keeps the
// latest measurement under a key with a TTL
type RedisSink struct {
	client redisClient
	prefix string
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisSink creates a sink connected to the configured Redis server
func NewRedisSink(cfg RedisConfig, logger *logrus.Logger) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "bandwidth"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   -1,
	})

	return newRedisSink(client, cfg, logger), nil
}

func newRedisSink(client redisClient, cfg RedisConfig, logger *logrus.Logger) *RedisSink {
	return &RedisSink{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

func (rs *RedisSink) Name() string {
	return "redis"
}

func (rs *RedisSink) ratesChannel() string {
	return rs.prefix + ":rates"
}

func (rs *RedisSink) alertsChannel() string {
	return rs.prefix + ":alerts"
}

func (rs *RedisSink) latestKey() string {
	return rs.prefix + ":latest"
}

func (rs *RedisSink) OnMeasurement(ctx context.Context, rate model.RateMeasurement) error {
	data, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("failed to marshal measurement: %w", err)
	}

	if err := rs.client.Set(ctx, rs.latestKey(), data, rs.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store latest measurement: %w", err)
	}
	if err := rs.client.Publish(ctx, rs.ratesChannel(), data).Err(); err != nil {
		return fmt.Errorf("failed to publish measurement: %w", err)
	}
	return nil
}

func (rs *RedisSink) OnAlert(ctx context.Context, event model.AlertEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := rs.client.Publish(ctx, rs.alertsChannel(), data).Err(); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

func (rs *RedisSink) Close(context.Context) error {
	if err := rs.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	rs.logger.Info("Redis connection closed")
	return nil
}
