package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// EmbeddingCache keeps already computed vectors keyed by model, dimension and
// text hash, so re-ingesting a file or repeating a question skips the provider.
type EmbeddingCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewEmbeddingCache(client *redisv9.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EmbeddingCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *EmbeddingCache) Get(ctx context.Context, model string, dim int, text string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, c.key(model, dim, text)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get embedding failed: %w", err)
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached embedding failed: %w", err)
	}
	if len(vec) != dim {
		return nil, false, nil
	}
	return vec, true, nil
}

func (c *EmbeddingCache) Set(ctx context.Context, model string, dim int, text string, vec []float32) error {
	payload, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal embedding cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(model, dim, text), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set embedding failed: %w", err)
	}
	return nil
}

func (c *EmbeddingCache) key(model string, dim int, text string) string {
	sum := blake2b.Sum256([]byte(text))
	return "rag:emb:" + model + ":" + strconv.Itoa(dim) + ":" + hex.EncodeToString(sum[:])
}
