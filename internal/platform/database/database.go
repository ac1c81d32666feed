package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docrag/internal/config"
	"docrag/internal/model"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// New opens the store selected by cfg.Store.Driver, checks the connection and
// migrates the documents, chunks and embeddings tables.
func New(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		maxOpen   = 50
	)
	switch cfg.Store.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.PostgresDSN())
	case DriverMySQL:
		dialector = mysql.Open(cfg.MySQLDSN())
	case DriverSQLite:
		if err := ensureDir(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.SQLite.Path)
		maxOpen = 1
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return open(ctx, cfg.Store.Driver, dialector, maxOpen)
}

// NewSQLite opens a SQLite store at path. ":memory:" is accepted.
func NewSQLite(ctx context.Context, path string) (*gorm.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return open(ctx, DriverSQLite, sqlite.Open(path), 1)
}

func open(ctx context.Context, driver string, dialector gorm.Dialector, maxOpen int) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s failed: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get %s sql db failed: %w", driver, err)
	}

	sqlDB.SetMaxIdleConns(min(10, maxOpen))
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping %s failed: %w", driver, err)
	}

	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema. On postgres the vector extension is
// installed first so the embeddings.vector column can use the native type.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if db.Dialector.Name() == DriverPostgres {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("create vector extension failed: %w", err)
		}
	}
	if err := db.AutoMigrate(&model.Document{}, &model.Chunk{}, &model.Embedding{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	if path == "" || path == ":memory:" || filepath.Dir(path) == "." {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir failed: %w", err)
	}
	return nil
}
