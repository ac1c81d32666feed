package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/app"
)

var (
	askDocument    string
	searchDocument string
	searchLimit    int
	searchJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the stored documents",
	Long: `Retrieves the chunks most similar to the question and asks the
language model to answer from them. Without --document the scope is picked
from a file name mentioned in the question, then the latest document.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find the chunks most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	askCmd.Flags().StringVarP(&askDocument, "document", "d", "", "only use this document")
	searchCmd.Flags().StringVarP(&searchDocument, "document", "d", "", "only search this document")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(askCmd, searchCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	res, err := s.Answers.Answer(cmd.Context(), app.AnswerInput{
		Messages:   []app.Turn{{Role: "user", Content: strings.Join(args, " ")}},
		DocumentID: askDocument,
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(res.Content)
	if len(res.Sources) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, src := range res.Sources {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, src.Document, src.Similarity)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	res, err := s.Search.Retrieve(cmd.Context(), args[0], searchDocument, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(res.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	cmd.Printf("Results (scope %s, %s):\n\n", res.Scope, res.Strategy)
	for i, r := range res.Results {
		title := r.DocumentTitle
		if title == "" {
			title = r.FileName
		}
		cmd.Printf("  [%d] %s #%d (%.4f)\n", i+1, title, r.ChunkIndex, r.Similarity)
		cmd.Printf("      %s\n\n", app.Preview(strings.ReplaceAll(r.Content, "\n", " "), 120))
	}
	return nil
}
