package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"docrag/internal/model"
)

// EmbeddingProvider is the external model that turns text into a vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbeddingModel() string
}

type EmbeddingCache interface {
	Get(ctx context.Context, model string, dim int, text string) ([]float32, bool, error)
	Set(ctx context.Context, model string, dim int, text string, vec []float32) error
}

type EmbedderConfig struct {
	Dimension int
	Timeout   time.Duration
	// RatePerSecond throttles provider calls; zero disables throttling.
	RatePerSecond float64
}

// Embedder enforces the corpus dimension: provider vectors longer than
// Dimension are cut to their first Dimension components, shorter ones are
// rejected.
type Embedder struct {
	provider EmbeddingProvider
	cache    EmbeddingCache
	limiter  *rate.Limiter
	cfg      EmbedderConfig
	logger   *slog.Logger
}

// NewEmbedder builds an Embedder. cache may be nil.
func NewEmbedder(provider EmbeddingProvider, cache EmbeddingCache, cfg EmbedderConfig, logger *slog.Logger) *Embedder {
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Embedder{
		provider: provider,
		cache:    cache,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
	}
}

func (e *Embedder) Dimension() int {
	return e.cfg.Dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) (model.Vector, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text to embed", ErrInvalidInput)
	}

	modelName := e.provider.EmbeddingModel()
	if e.cache != nil {
		vec, ok, err := e.cache.Get(ctx, modelName, e.cfg.Dimension, text)
		if err != nil {
			e.logger.Warn("embedding cache get failed", "error", err)
		} else if ok {
			return model.Vector(vec), nil
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, externalErr(ErrEmbeddingProvider, err)
		}
	}

	callCtx, cancel := withTimeout(ctx, e.cfg.Timeout)
	raw, err := e.provider.Embed(callCtx, text)
	cancel()
	if err != nil {
		return nil, externalErr(ErrEmbeddingProvider, err)
	}

	vec, err := e.normalize(raw)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, modelName, e.cfg.Dimension, text, vec); err != nil {
			e.logger.Warn("embedding cache set failed", "error", err)
		}
	}
	return vec, nil
}

func (e *Embedder) normalize(raw []float32) (model.Vector, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: provider returned an empty vector", ErrInvalidEmbedding)
	}
	if len(raw) < e.cfg.Dimension {
		return nil, fmt.Errorf("%w: provider returned %d components, need %d", ErrInvalidEmbedding, len(raw), e.cfg.Dimension)
	}
	vec := make(model.Vector, e.cfg.Dimension)
	copy(vec, raw)
	for i, x := range vec {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, fmt.Errorf("%w: component %d is not a finite number", ErrInvalidEmbedding, i)
		}
	}
	return vec, nil
}
