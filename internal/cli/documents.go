package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	listOwner string
	debugJSON bool
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage stored documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document with its chunks and embeddings",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var documentsDebugCmd = &cobra.Command{
	Use:   "debug [doc-id]",
	Short: "Show stored chunks and an embedding sample",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDebug,
}

var documentsBackfillCmd = &cobra.Command{
	Use:   "backfill [doc-id]",
	Short: "Embed chunks that have no embedding",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsBackfill,
}

func init() {
	documentsListCmd.Flags().StringVar(&listOwner, "owner", "", "only list documents of this owner")
	documentsDebugCmd.Flags().BoolVar(&debugJSON, "json", false, "output the report as JSON")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	documentsCmd.AddCommand(documentsDebugCmd)
	documentsCmd.AddCommand(documentsBackfillCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	docs, err := s.Documents.List(cmd.Context(), listOwner)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title:   %s\n", docs[i].Title)
		cmd.Printf("    File:    %s\n", docs[i].FileName)
		cmd.Printf("    Created: %s\n", docs[i].CreatedAt.Format(timeLayout))
		cmd.Println()
	}
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	doc, err := s.Documents.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:   %s\n", doc.Title)
	cmd.Printf("  File:    %s\n", doc.FileName)
	cmd.Printf("  Type:    %s\n", doc.FileType)
	cmd.Printf("  Size:    %d bytes\n", doc.FileSize)
	if doc.OwnerID != "" {
		cmd.Printf("  Owner:   %s\n", doc.OwnerID)
	}
	cmd.Printf("  Created: %s\n", doc.CreatedAt.Format(timeLayout))
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if err := s.Documents.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted document %s\n", args[0])
	return nil
}

func runDocumentsDebug(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	report, err := s.Documents.Debug(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to inspect document: %w", err)
	}

	if debugJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Document:   %s (%s)\n", report.Document.ID, report.Document.FileName)
	cmd.Printf("Chunks:     %d\n", report.ChunkCount)
	cmd.Printf("Embeddings: %d\n", report.EmbeddingCount)
	if report.EmbeddingCount < report.ChunkCount {
		cmd.Printf("Missing:    %d (run: ragctl documents backfill %s)\n",
			report.ChunkCount-report.EmbeddingCount, report.Document.ID)
	}
	for _, e := range report.Sample {
		cmd.Printf("  %s chunk=%s dim=%d head=%v\n", e.ID, e.ChunkID, e.Dimension, e.Head)
	}
	return nil
}

func runDocumentsBackfill(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	res, err := s.Ingest.Backfill(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	cmd.Printf("Backfilled %s: %d of %d missing embeddings stored\n", res.DocumentID, res.Stored, res.Missing)
	return nil
}
