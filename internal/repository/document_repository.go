package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"docrag/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// Latest returns the most recently created document, or nil when there is none.
func (r *DocumentRepository) Latest(ctx context.Context) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Order("created_at DESC").First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest document failed: %w", err)
	}
	return &doc, nil
}

// FindByFileName returns the newest document whose file name contains
// fragment, ignoring case.
func (r *DocumentRepository) FindByFileName(ctx context.Context, fragment string) (*model.Document, error) {
	pattern := "%" + escapeLike(strings.ToLower(fragment)) + "%"
	var doc model.Document
	err := r.db.WithContext(ctx).
		Where("LOWER(file_name) LIKE ? ESCAPE '!'", pattern).
		Order("created_at DESC").
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find document by file name failed: %w", err)
	}
	return &doc, nil
}

// ListByExactFileName returns every document stored under name.
func (r *DocumentRepository) ListByExactFileName(ctx context.Context, name string) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.WithContext(ctx).Where("file_name = ?", name).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents by file name failed: %w", err)
	}
	return list, nil
}

// ListRecent lists documents newest first. An empty ownerID lists everyone's.
func (r *DocumentRepository) ListRecent(ctx context.Context, ownerID string, limit int) ([]model.Document, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var list []model.Document
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// Delete removes a document with its chunks and embeddings in one
// transaction. It reports whether the document existed.
func (r *DocumentRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chunkIDs := tx.Model(&model.Chunk{}).Select("id").Where("document_id = ?", id)
		if err := tx.Where("chunk_id IN (?)", chunkIDs).Delete(&model.Embedding{}).Error; err != nil {
			return fmt.Errorf("delete embeddings failed: %w", err)
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return fmt.Errorf("delete chunks failed: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Document{})
		if res.Error != nil {
			return fmt.Errorf("delete document failed: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
