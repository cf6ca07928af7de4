package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"dragonfly-id/internal/vision"
)

// PredictionCache stores model-sourced predictions keyed by the content hash of the image.
type PredictionCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewPredictionCache(client *redisv9.Client, ttl time.Duration) *PredictionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PredictionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *PredictionCache) Get(ctx context.Context, contentHash uint64) (*vision.Prediction, bool, error) {
	raw, err := c.client.Get(ctx, c.key(contentHash)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get prediction failed: %w", err)
	}

	var p vision.Prediction
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached prediction failed: %w", err)
	}
	return &p, true, nil
}

func (c *PredictionCache) Set(ctx context.Context, contentHash uint64, p *vision.Prediction) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(contentHash), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set prediction failed: %w", err)
	}
	return nil
}

func (c *PredictionCache) key(contentHash uint64) string {
	return fmt.Sprintf("identify:prediction:%016x", contentHash)
}
