package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/watch"
)

var (
	watchInitial bool
	watchOwner   string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files dropped into a directory",
	Long: `Watches a directory and ingests every supported file that is created
or written there. A file replaces earlier documents with the same name.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "ingest files already in the directory first")
	watchCmd.Flags().StringVar(&watchOwner, "owner", "", "owner id stored with the documents")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	var debounce time.Duration
	if s.Config != nil {
		debounce = s.Config.Watch.Debounce()
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	w := watch.New(args[0], s.Ingest, watch.Options{
		Debounce:    debounce,
		InitialScan: watchInitial,
		OwnerID:     watchOwner,
	}, logger)
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	return w.Run(cmd.Context())
}
