package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voicebot/internal/config"
	"voicebot/internal/db"
	"voicebot/internal/importer"
	"voicebot/internal/logging"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

// openFunc opens the item store and returns a release function.
type openFunc func(ctx context.Context) (importer.ItemCreator, func(), error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openStore).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(open openFunc) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "importer <file>",
		Short: "Add sentences from a UTF-8 text file, one per line",
		Long: `importer reads a UTF-8 text file and adds every non-blank line as a new
sentence to record. A malformed line stops the import; lines before it are kept.`,
		Args:         cobra.ExactArgs(1),
		Version:      CommitSHA,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if dryRun {
				return preview(cmd.OutOrStdout(), data)
			}

			store, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			count, err := importer.Import(cmd.Context(), store, data)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d sentences\n", count)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report how many sentences would be added")
	return cmd
}

func preview(out io.Writer, data []byte) error {
	lines, err := importer.Lines(data)
	fmt.Fprintf(out, "would import %d sentences\n", importer.CountNonBlank(lines))
	return err
}

func openStore(ctx context.Context) (importer.ItemCreator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if _, err := logging.New(cfg.LogLevel, cfg.LogFormat, "importer"); err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}

	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	release := func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
	return store, release, nil
}
