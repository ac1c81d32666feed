package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docrag/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) Create(ctx context.Context, chunk *model.Chunk) error {
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("create chunk failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByDocumentID(ctx context.Context, documentID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) CountByDocumentID(ctx context.Context, documentID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Chunk{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return n, nil
}

// ListMissingEmbeddings returns the chunks of a document that have no
// embedding row, in chunk order.
func (r *ChunkRepository) ListMissingEmbeddings(ctx context.Context, documentID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.WithContext(ctx).
		Model(&model.Chunk{}).
		Select("chunks.*").
		Joins("LEFT JOIN embeddings ON embeddings.chunk_id = chunks.id").
		Where("chunks.document_id = ? AND embeddings.id IS NULL", documentID).
		Order("chunks.chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks missing embeddings failed: %w", err)
	}
	return chunks, nil
}
