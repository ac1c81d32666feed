package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var ErrMalformedVector = errors.New("malformed vector")

// Vector is an embedding as stored in the embeddings table. It is written in
// the pgvector text form "[a,b,...]" on every dialect and parsed once on read.
type Vector []float32

func (v Vector) Dim() int { return len(v) }

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return pgvector.NewVector(v).Value()
}

func (v *Vector) Scan(src any) error {
	if src == nil {
		*v = nil
		return nil
	}

	var raw string
	switch s := src.(type) {
	case []byte:
		raw = string(s)
	case string:
		raw = s
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrMalformedVector, src)
	}
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return fmt.Errorf("%w: %q", ErrMalformedVector, truncate(raw, 32))
	}
	if strings.TrimSpace(raw[1:len(raw)-1]) == "" {
		*v = Vector{}
		return nil
	}

	var pv pgvector.Vector
	if err := pv.Scan(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedVector, err)
	}
	*v = pv.Slice()
	return nil
}

// GormDataType names the field type for gorm's schema parser, which does not
// accept a bare []float32.
func (Vector) GormDataType() string {
	return "vector"
}

// GormDBDataType maps the vector column per dialect. Only postgres gets a
// native column; elsewhere the text form is stored as is.
func (Vector) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "vector"
	case "mysql":
		return "longtext"
	default:
		return "text"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
