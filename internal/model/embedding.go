package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Embedding holds the single current vector of a chunk.
type Embedding struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ChunkID   string    `gorm:"size:36;not null;uniqueIndex" json:"chunk_id"`
	Vector    Vector    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *Embedding) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ChunkMatch is a retrieval candidate: a chunk joined with its embedding and
// owning document. Similarity is filled by whoever scored it.
type ChunkMatch struct {
	EmbeddingID   string  `json:"embedding_id"`
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	ChunkIndex    int     `json:"chunk_index"`
	Content       string  `json:"content"`
	DocumentTitle string  `json:"document_title"`
	FileName      string  `json:"file_name"`
	Vector        Vector  `json:"-"`
	Similarity    float64 `json:"similarity"`
}
