package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chunk is one segment of a document's extracted text.
type Chunk struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	DocumentID string    `gorm:"size:36;not null;index" json:"document_id"`
	Index      int       `gorm:"column:chunk_index;not null" json:"index"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c *Chunk) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
