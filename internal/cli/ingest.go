package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docrag/internal/app"
)

var (
	ingestTitle   string
	ingestOwner   string
	ingestReplace bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents",
	Long: `Extracts text from each file, splits it into chunks and stores an
embedding per chunk. A file that fails leaves nothing behind; the remaining
files are still ingested.

Use --replace to delete earlier documents with the same file name first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title (single file only)")
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "", "owner id stored with the documents")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "replace documents with the same file name")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if ingestTitle != "" && len(args) > 1 {
		return errors.New("--title can only be used with a single file")
	}

	var errs []error
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		input := app.IngestInput{
			Data:     data,
			FileName: filepath.Base(path),
			OwnerID:  ingestOwner,
			Title:    ingestTitle,
		}

		ingest := s.Ingest.Ingest
		if ingestReplace {
			ingest = s.Ingest.Reingest
		}
		res, err := ingest(cmd.Context(), input)
		if err != nil {
			cmd.PrintErrf("Failed: %s: %v\n", path, err)
			errs = append(errs, fmt.Errorf("ingest %s: %w", path, err))
			continue
		}
		cmd.Printf("Ingested %s\n", path)
		cmd.Printf("  Document:   %s\n", res.Document.ID)
		cmd.Printf("  Chunks:     %d\n", res.TotalChunks)
		cmd.Printf("  Embeddings: %d\n", res.EmbeddingsStored)
	}
	return errors.Join(errs...)
}
