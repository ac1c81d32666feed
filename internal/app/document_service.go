package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docrag/internal/model"
)

type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
	ListRecent(ctx context.Context, ownerID string, limit int) ([]model.Document, error)
	ListByExactFileName(ctx context.Context, name string) ([]model.Document, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type ChunkReader interface {
	ListByDocumentID(ctx context.Context, documentID string) ([]model.Chunk, error)
	CountByDocumentID(ctx context.Context, documentID string) (int64, error)
}

type EmbeddingReader interface {
	CountByDocumentID(ctx context.Context, documentID string) (int64, error)
	SampleByDocumentID(ctx context.Context, documentID string, limit int) ([]model.Embedding, error)
}

type DebugChunk struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type DebugEmbedding struct {
	ID        string    `json:"id"`
	ChunkID   string    `json:"chunk_id"`
	Dimension int       `json:"dimension"`
	Head      []float32 `json:"head"`
}

// DebugReport is the diagnostic view of one stored document.
type DebugReport struct {
	Document       *model.Document  `json:"document"`
	ChunkCount     int64            `json:"chunk_count"`
	Chunks         []DebugChunk     `json:"chunks"`
	EmbeddingCount int64            `json:"embedding_count"`
	Sample         []DebugEmbedding `json:"sample"`
}

const (
	debugSampleSize = 5
	debugHeadSize   = 8
)

type DocumentService struct {
	docs       DocumentStore
	chunks     ChunkReader
	embeddings EmbeddingReader
	listLimit  int
	logger     *slog.Logger
}

func NewDocumentService(docs DocumentStore, chunks ChunkReader, embeddings EmbeddingReader, listLimit int, logger *slog.Logger) *DocumentService {
	if listLimit <= 0 {
		listLimit = 20
	}
	return &DocumentService{
		docs:       docs,
		chunks:     chunks,
		embeddings: embeddings,
		listLimit:  listLimit,
		logger:     logger,
	}
}

// List returns the newest documents, optionally only those of ownerID.
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]model.Document, error) {
	docs, err := s.docs.ListRecent(ctx, ownerID, s.listLimit)
	if err != nil {
		return nil, storeErr(err)
	}
	return docs, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// Delete removes a document with its chunks and embeddings.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	ok, err := s.docs.Delete(ctx, id)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// DeleteByFileName removes every document stored under name and returns how
// many went away.
func (s *DocumentService) DeleteByFileName(ctx context.Context, name string) (int, error) {
	docs, err := s.docs.ListByExactFileName(ctx, name)
	if err != nil {
		return 0, storeErr(err)
	}
	n := 0
	for _, d := range docs {
		ok, err := s.docs.Delete(ctx, d.ID)
		if err != nil {
			return n, storeErr(err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *DocumentService) Debug(ctx context.Context, id string) (*DebugReport, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chunkCount, err := s.chunks.CountByDocumentID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	chunks, err := s.chunks.ListByDocumentID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	embCount, err := s.embeddings.CountByDocumentID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	sample, err := s.embeddings.SampleByDocumentID(ctx, id, debugSampleSize)
	if err != nil {
		return nil, storeErr(err)
	}

	report := &DebugReport{
		Document:       doc,
		ChunkCount:     chunkCount,
		Chunks:         make([]DebugChunk, 0, len(chunks)),
		EmbeddingCount: embCount,
		Sample:         make([]DebugEmbedding, 0, len(sample)),
	}
	for _, c := range chunks {
		report.Chunks = append(report.Chunks, DebugChunk{ID: c.ID, Index: c.Index, Content: c.Content, CreatedAt: c.CreatedAt})
	}
	for _, e := range sample {
		head := e.Vector
		if len(head) > debugHeadSize {
			head = head[:debugHeadSize]
		}
		report.Sample = append(report.Sample, DebugEmbedding{
			ID:        e.ID,
			ChunkID:   e.ChunkID,
			Dimension: e.Vector.Dim(),
			Head:      []float32(head),
		})
	}
	return report, nil
}
