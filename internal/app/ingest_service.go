package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	"docrag/internal/model"
	"docrag/internal/pkg/extract"
)

// ExtractFunc turns file bytes into text. extract.Extract is the default.
type ExtractFunc func(ctx context.Context, data []byte, fileName, mimeType string) (*extract.Result, error)

type TextChunker interface {
	Chunk(text string) []string
}

type VectorEmbedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
	Dimension() int
}

type DocumentWriter interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	ListByExactFileName(ctx context.Context, name string) ([]model.Document, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type ChunkWriter interface {
	Create(ctx context.Context, chunk *model.Chunk) error
	ListMissingEmbeddings(ctx context.Context, documentID string) ([]model.Chunk, error)
}

type EmbeddingWriter interface {
	Create(ctx context.Context, embedding *model.Embedding) error
}

type IngestInput struct {
	Data     []byte
	FileName string
	MIMEType string
	OwnerID  string
	// Title defaults to the file name.
	Title string
}

type IngestResult struct {
	Document         *model.Document `json:"document"`
	TotalChunks      int             `json:"total_chunks"`
	EmbeddingsStored int             `json:"embeddings_stored"`
	Preview          string          `json:"preview"`
}

type BackfillResult struct {
	DocumentID string `json:"document_id"`
	Missing    int    `json:"missing"`
	Stored     int    `json:"stored"`
}

type IngestConfig struct {
	ExtractTimeout time.Duration
	PreviewChars   int
}

// IngestService writes documents chunk by chunk. The first chunk that fails
// to embed or persist aborts the run and the partial document is removed.
type IngestService struct {
	docs       DocumentWriter
	chunks     ChunkWriter
	embeddings EmbeddingWriter
	chunker    TextChunker
	embedder   VectorEmbedder
	extract    ExtractFunc
	cfg        IngestConfig
	logger     *slog.Logger
}

func NewIngestService(
	docs DocumentWriter,
	chunks ChunkWriter,
	embeddings EmbeddingWriter,
	chunker TextChunker,
	embedder VectorEmbedder,
	extractFn ExtractFunc,
	cfg IngestConfig,
	logger *slog.Logger,
) *IngestService {
	if extractFn == nil {
		extractFn = extract.Extract
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = 500
	}
	return &IngestService{
		docs:       docs,
		chunks:     chunks,
		embeddings: embeddings,
		chunker:    chunker,
		embedder:   embedder,
		extract:    extractFn,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" || len(input.Data) == 0 {
		return nil, fmt.Errorf("%w: file name and content are required", ErrInvalidInput)
	}

	extracted, err := s.extractText(ctx, input.Data, fileName, input.MIMEType)
	if err != nil {
		return nil, err
	}

	pieces := s.chunker.Chunk(extracted.Text)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: %s produced no chunks", ErrExtraction, fileName)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = fileName
	}
	doc := &model.Document{
		Title:    title,
		FileName: fileName,
		FileType: extracted.MIMEType,
		FileSize: int64(len(input.Data)),
		OwnerID:  input.OwnerID,
		Metadata: datatypes.JSONMap(extracted.Metadata),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, storeErr(err)
	}

	logger := s.logger.With("document_id", doc.ID, "file_name", fileName)
	logger.Info("ingesting document", "chunks", len(pieces), "file_type", doc.FileType)

	stored := 0
	for i, content := range pieces {
		chunk := &model.Chunk{DocumentID: doc.ID, Index: i, Content: content}
		if err := s.embedAndStore(ctx, chunk, true); err != nil {
			s.discard(ctx, logger, doc.ID)
			return nil, fmt.Errorf("ingest %s aborted at chunk %d of %d (%d embeddings stored): %w",
				fileName, i, len(pieces), stored, err)
		}
		stored++
	}

	logger.Info("document ingested", "chunks", len(pieces), "embeddings", stored)
	return &IngestResult{
		Document:         doc,
		TotalChunks:      len(pieces),
		EmbeddingsStored: stored,
		Preview:          Preview(extracted.Text, s.cfg.PreviewChars),
	}, nil
}

// Reingest replaces every document stored under the same file name.
func (s *IngestService) Reingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	existing, err := s.docs.ListByExactFileName(ctx, strings.TrimSpace(input.FileName))
	if err != nil {
		return nil, storeErr(err)
	}
	for _, doc := range existing {
		if _, err := s.docs.Delete(ctx, doc.ID); err != nil {
			return nil, storeErr(err)
		}
		s.logger.Info("replaced previous version", "document_id", doc.ID, "file_name", doc.FileName)
	}
	return s.Ingest(ctx, input)
}

// Backfill embeds the chunks of a document that have no embedding. It stops
// at the first failure and reports how far it got.
func (s *IngestService) Backfill(ctx context.Context, documentID string) (*BackfillResult, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, storeErr(err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}

	missing, err := s.chunks.ListMissingEmbeddings(ctx, documentID)
	if err != nil {
		return nil, storeErr(err)
	}

	res := &BackfillResult{DocumentID: documentID, Missing: len(missing)}
	for i := range missing {
		if err := s.embedAndStore(ctx, &missing[i], false); err != nil {
			return res, fmt.Errorf("backfill %s stopped at chunk %d (%d of %d stored): %w",
				documentID, missing[i].Index, res.Stored, res.Missing, err)
		}
		res.Stored++
	}
	if res.Missing > 0 {
		s.logger.Info("embeddings backfilled", "document_id", documentID, "stored", res.Stored)
	}
	return res, nil
}

func (s *IngestService) extractText(ctx context.Context, data []byte, fileName, mimeType string) (*extract.Result, error) {
	extractCtx, cancel := withTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()

	res, err := s.extract(extractCtx, data, fileName, mimeType)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return nil, fmt.Errorf("%w: %w: %w", ErrExtraction, ErrUnsupportedFormat, err)
	default:
		return nil, externalErr(ErrExtraction, err)
	}
}

// embedAndStore embeds chunk.Content and writes the embedding, plus the chunk
// itself when createChunk is set. The chunk is only written once its vector
// exists so an aborted run never leaves an unembedded chunk behind.
func (s *IngestService) embedAndStore(ctx context.Context, chunk *model.Chunk, createChunk bool) error {
	vec, err := s.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		return err
	}
	if len(vec) != s.embedder.Dimension() {
		return fmt.Errorf("%w: got %d components, corpus uses %d", ErrInvalidEmbedding, len(vec), s.embedder.Dimension())
	}
	if createChunk {
		if err := s.chunks.Create(ctx, chunk); err != nil {
			return storeErr(err)
		}
	}
	if err := s.embeddings.Create(ctx, &model.Embedding{ChunkID: chunk.ID, Vector: vec}); err != nil {
		return storeErr(err)
	}
	return nil
}

// discard is the compensating delete for an aborted ingestion. It must run
// even when ctx is already cancelled.
func (s *IngestService) discard(ctx context.Context, logger *slog.Logger, documentID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := s.docs.Delete(cleanupCtx, documentID); err != nil {
		logger.Error("cleanup of partially ingested document failed", "error", err)
		return
	}
	logger.Warn("partially ingested document removed")
}
