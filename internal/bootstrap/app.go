package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docrag/internal/ai"
	"docrag/internal/app"
	"docrag/internal/cache"
	"docrag/internal/config"
	"docrag/internal/platform/database"
	rabbitmqClient "docrag/internal/platform/rabbitmq"
	redisClient "docrag/internal/platform/redis"
	"docrag/internal/rag"
	"docrag/internal/repository"
	"docrag/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Publisher      *rabbitmqClient.BackfillPublisher
	BackfillWorker *worker.BackfillWorker

	Ingest    *app.IngestService
	Documents *app.DocumentService
	Retriever *app.Retriever
	Answers   *app.AnswerService

	StartedAt time.Time
}

type options struct {
	logOutput   io.Writer
	startWorker bool
}

type Option func(*options)

// WithBackfillWorker consumes queued backfill jobs in this process. It has no
// effect when RabbitMQ is disabled.
func WithBackfillWorker() Option {
	return func(o *options) { o.startWorker = true }
}

// WithLogOutput sends logs to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:    cfg,
		Logger:    NewLogger(o.logOutput, cfg.App.LogLevel, cfg.App.LogFormat),
		StartedAt: time.Now(),
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DB = db

	var embCache app.EmbeddingCache
	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Redis = redisCli
		embCache = cache.NewEmbeddingCache(redisCli, cfg.Embedding.CacheTTL())
	}

	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.BackfillQueue)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.MQConn = mqConn
		a.Publisher = rabbitmqClient.NewBackfillPublisher(mqConn, cfg.RabbitMQ.BackfillQueue)
	}

	a.wireServices(embCache)

	if o.startWorker && a.MQConn != nil {
		a.BackfillWorker = worker.NewBackfillWorker(a.MQConn, a.Ingest, cfg.RabbitMQ.BackfillQueue, a.Logger)
		if err := a.BackfillWorker.Start(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("start backfill worker failed: %w", err)
		}
	}

	a.Logger.Info("application ready",
		"store", db.Dialector.Name(),
		"redis", a.Redis != nil,
		"rabbitmq", a.MQConn != nil,
		"embedding_model", cfg.Embedding.Model,
		"dimension", cfg.Embedding.Dimension,
	)
	return a, nil
}

// wireServices builds the services on top of an open store. embCache may be
// nil.
func (a *App) wireServices(embCache app.EmbeddingCache) {
	cfg := a.Config

	docRepo := repository.NewDocumentRepository(a.DB)
	chunkRepo := repository.NewChunkRepository(a.DB)
	embRepo := repository.NewEmbeddingRepository(a.DB)

	client := ai.NewOpenAICompatibleClient(
		ai.ChatConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout(),
		},
		ai.EmbeddingConfig{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
			Timeout: cfg.Embedding.Timeout(),
		},
	)

	embedder := app.NewEmbedder(client, embCache, app.EmbedderConfig{
		Dimension:     cfg.Embedding.Dimension,
		Timeout:       cfg.Embedding.Timeout(),
		RatePerSecond: cfg.Embedding.RatePerSecond,
	}, a.Logger.With("component", "embedder"))

	chunker := rag.NewChunker(rag.WithChunkSize(cfg.RAG.ChunkSize), rag.WithOverlap(cfg.RAG.ChunkOverlap))

	a.Retriever = app.NewRetriever(docRepo, embRepo, embedder, app.RetrieverConfig{
		TopK:           cfg.RAG.TopK,
		IndexThreshold: cfg.RAG.IndexThreshold,
		FallbackFloor:  cfg.RAG.FallbackFloor,
		GlobalPoolSize: cfg.RAG.GlobalPoolSize,
		SearchTimeout:  cfg.RAG.SearchTimeout(),
	}, a.Logger.With("component", "retriever"))

	a.Answers = app.NewAnswerService(embedder, a.Retriever, client, app.AnswerConfig{
		TopK:            cfg.RAG.TopK,
		PreviewChars:    cfg.RAG.SourcePreviewChars,
		GenerateTimeout: cfg.LLM.Timeout(),
	}, a.Logger.With("component", "answer"))

	a.Ingest = app.NewIngestService(docRepo, chunkRepo, embRepo, chunker, embedder, nil, app.IngestConfig{
		ExtractTimeout: cfg.RAG.ExtractTimeout(),
		PreviewChars:   cfg.RAG.UploadPreviewChars,
	}, a.Logger.With("component", "ingest"))

	a.Documents = app.NewDocumentService(docRepo, chunkRepo, embRepo, cfg.RAG.DocumentListLimit,
		a.Logger.With("component", "documents"))
}

func (a *App) Close() error {
	var errs []error
	if a.BackfillWorker != nil {
		a.BackfillWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
