package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Document struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	Title     string            `gorm:"size:512;not null" json:"title"`
	FileName  string            `gorm:"size:512;not null;index" json:"file_name"`
	FileType  string            `gorm:"size:128" json:"file_type"`
	FileSize  int64             `json:"file_size"`
	OwnerID   string            `gorm:"size:128;index" json:"owner_id,omitempty"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func (d *Document) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
