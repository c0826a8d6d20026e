package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Config configures the reload trigger queue.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// TriggerQueue pops re-analysis requests from a Redis list. Producers
// request a reload with `RPUSH <key> <anything>`.
type TriggerQueue struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewTriggerQueue validates cfg and creates the client. The connection is
// established lazily on the first Pop.
func NewTriggerQueue(cfg Config) (*TriggerQueue, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &TriggerQueue{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

func normalize(cfg Config) (Config, error) {
	cfg.Key = strings.TrimSpace(cfg.Key)
	if cfg.Key == "" {
		return cfg, fmt.Errorf("trigger key is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	return cfg, nil
}

// Key returns the list the queue pops from.
func (q *TriggerQueue) Key() string {
	return q.key
}

// Pop blocks for up to the configured timeout. It returns a nil payload and
// nil error when nothing arrived.
func (q *TriggerQueue) Pop(ctx context.Context) ([]byte, error) {
	res, err := q.client.BLPop(ctx, q.blockTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop %s: %w", q.key, err)
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Close closes the client.
func (q *TriggerQueue) Close() error {
	return q.client.Close()
}
