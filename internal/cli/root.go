// Package cli implements the ragctl command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"docrag/internal/app"
	"docrag/internal/bootstrap"
	"docrag/internal/config"
	"docrag/internal/model"
)

type Ingester interface {
	Ingest(ctx context.Context, input app.IngestInput) (*app.IngestResult, error)
	Reingest(ctx context.Context, input app.IngestInput) (*app.IngestResult, error)
	Backfill(ctx context.Context, documentID string) (*app.BackfillResult, error)
}

type Answerer interface {
	Answer(ctx context.Context, input app.AnswerInput) (*app.AnswerResult, error)
}

type Searcher interface {
	Retrieve(ctx context.Context, query, documentID string, limit int) (*app.RetrieveResult, error)
}

type DocumentManager interface {
	List(ctx context.Context, ownerID string) ([]model.Document, error)
	Get(ctx context.Context, id string) (*model.Document, error)
	Delete(ctx context.Context, id string) error
	Debug(ctx context.Context, id string) (*app.DebugReport, error)
}

// Services are what the commands run against. Close may be nil.
type Services struct {
	Config    *config.Config
	Ingest    Ingester
	Answers   Answerer
	Search    Searcher
	Documents DocumentManager
	Logger    *slog.Logger
	Close     func() error
}

var (
	services *Services
	// ownServices is set when services were opened by this process and must
	// be closed after the command.
	ownServices bool

	loadConfig = config.Load
	openApp    = openBootstrap
)

// offlineAnnotation marks commands that only need configuration.
const offlineAnnotation = "offline"

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Ingest documents and ask questions about them",
	Long: `ragctl stores documents as embedded chunks and answers questions
using the most similar chunks as context.

Configuration is read from configs/config.toml (or CONFIG_FILE) and the
environment, the same way the HTTP server reads it.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupServices,
	PersistentPostRunE: teardownServices,
}

// Execute runs the command line with ctx as the base context of every command.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	err := rootCmd.ExecuteContext(ctx)
	// Post-run hooks are skipped when a command fails.
	return errors.Join(err, teardownServices(rootCmd, nil))
}

func setupServices(cmd *cobra.Command, _ []string) error {
	if services != nil || !needsServices(cmd) {
		return nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	s, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	services = s
	ownServices = true
	return nil
}

func teardownServices(_ *cobra.Command, _ []string) error {
	if !ownServices || services == nil {
		return nil
	}
	s := services
	services, ownServices = nil, false
	if s.Close != nil {
		return s.Close()
	}
	return nil
}

func needsServices(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[offlineAnnotation]; ok {
			return false
		}
		switch c.Name() {
		case "help", "completion":
			return false
		}
	}
	return true
}

// openBootstrap logs to stderr so stdout stays clean for command output.
func openBootstrap(ctx context.Context, cfg *config.Config) (*Services, error) {
	a, err := bootstrap.New(ctx, cfg, bootstrap.WithLogOutput(os.Stderr))
	if err != nil {
		return nil, err
	}
	return &Services{
		Config:    cfg,
		Ingest:    a.Ingest,
		Answers:   a.Answers,
		Search:    a.Retriever,
		Documents: a.Documents,
		Logger:    a.Logger,
		Close:     a.Close,
	}, nil
}

func requireServices() (*Services, error) {
	if services == nil {
		return nil, errors.New("services not configured")
	}
	return services, nil
}
