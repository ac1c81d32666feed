package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docrag/internal/model"
)

// ErrIndexUnavailable is returned by Nearest when the store has no native
// nearest-neighbour operator.
var ErrIndexUnavailable = errors.New("indexed vector search unavailable")

const candidateColumns = "e.id AS embedding_id, c.id AS chunk_id, c.document_id AS document_id, " +
	"c.chunk_index AS chunk_index, c.content AS content, d.title AS document_title, " +
	"d.file_name AS file_name, e.vector AS vector"

type EmbeddingRepository struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

func (r *EmbeddingRepository) Create(ctx context.Context, embedding *model.Embedding) error {
	if err := r.db.WithContext(ctx).Create(embedding).Error; err != nil {
		return fmt.Errorf("create embedding failed: %w", err)
	}
	return nil
}

func (r *EmbeddingRepository) CountByDocumentID(ctx context.Context, documentID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Embedding{}).
		Joins("JOIN chunks ON chunks.id = embeddings.chunk_id").
		Where("chunks.document_id = ?", documentID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count embeddings failed: %w", err)
	}
	return n, nil
}

// SampleByDocumentID returns up to limit embeddings of a document in chunk order.
func (r *EmbeddingRepository) SampleByDocumentID(ctx context.Context, documentID string, limit int) ([]model.Embedding, error) {
	var list []model.Embedding
	err := r.db.WithContext(ctx).
		Model(&model.Embedding{}).
		Select("embeddings.*").
		Joins("JOIN chunks ON chunks.id = embeddings.chunk_id").
		Where("chunks.document_id = ?", documentID).
		Order("chunks.chunk_index ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("sample embeddings failed: %w", err)
	}
	return list, nil
}

// ListCandidates loads every embedded chunk of a document in chunk order.
func (r *EmbeddingRepository) ListCandidates(ctx context.Context, documentID string) ([]model.ChunkMatch, error) {
	var rows []model.ChunkMatch
	err := r.candidates(ctx).
		Where("c.document_id = ?", documentID).
		Order("c.chunk_index ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list candidates failed: %w", err)
	}
	return rows, nil
}

// GlobalPool loads the first limit embeddings across all documents by creation time.
func (r *EmbeddingRepository) GlobalPool(ctx context.Context, limit int) ([]model.ChunkMatch, error) {
	var rows []model.ChunkMatch
	err := r.candidates(ctx).
		Order("e.created_at ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list global pool failed: %w", err)
	}
	return rows, nil
}

// Nearest runs the store's own cosine-distance search. Rows below threshold
// are dropped. An empty documentID searches every document.
func (r *EmbeddingRepository) Nearest(ctx context.Context, query model.Vector, documentID string, threshold float64, limit int) ([]model.ChunkMatch, error) {
	if r.db.Dialector.Name() != "postgres" {
		return nil, fmt.Errorf("%w on %s", ErrIndexUnavailable, r.db.Dialector.Name())
	}

	var rows []model.ChunkMatch
	if err := r.nearestQuery(ctx, query, documentID, threshold, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("nearest embeddings failed: %w", err)
	}
	return rows, nil
}

func (r *EmbeddingRepository) nearestQuery(ctx context.Context, query model.Vector, documentID string, threshold float64, limit int) *gorm.DB {
	distance := clause.Expr{SQL: "e.vector <=> CAST(? AS vector)", Vars: []any{query}, WithoutParentheses: true}
	q := r.candidates(ctx).
		Select(candidateColumns+", 1 - (e.vector <=> CAST(? AS vector)) AS similarity", query).
		Where("1 - (e.vector <=> CAST(? AS vector)) >= ?", query, threshold)
	if documentID != "" {
		q = q.Where("c.document_id = ?", documentID)
	}
	return q.Order(clause.OrderBy{Expression: distance}).Limit(limit)
}

func (r *EmbeddingRepository) candidates(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("embeddings AS e").
		Select(candidateColumns).
		Joins("JOIN chunks c ON c.id = e.chunk_id").
		Joins("JOIN documents d ON d.id = c.document_id")
}
