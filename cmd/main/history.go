package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/agilira/go-errors"
	"github.com/spf13/cobra"

	"github.com/CTAG07/tmplr/pkg/errcodes"
	"github.com/CTAG07/tmplr/pkg/history"
)

// openHistory opens (creating if needed) the history database at path and
// returns a Store with a func that releases both.
func openHistory(logger *slog.Logger, path string) (*history.Store, func(), error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, errors.Wrap(err, errcodes.ErrCodeHistory, "failed to create history directory: "+err.Error()).
				WithContext("path", dir)
		}
	}

	db, err := initDB(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errcodes.ErrCodeHistory, "failed to open history database: "+err.Error()).
			WithContext("path", path)
	}
	if err = history.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	store, err := history.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	store.SetLogger(logger)
	logger.Debug("Opened render history", "path", path, "driver", sqliteDriver)

	return store, func() {
		store.Close()
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Failed to close history database", "error", closeErr)
		}
	}, nil
}

// requireHistory opens the configured history database for the history
// commands, which make no sense without one.
func (a *app) requireHistory() (*history.Store, func(), error) {
	if a.config.HistoryPath == "" {
		return nil, nil, errors.New(errcodes.ErrCodeInvalidConfig,
			"render history is disabled: set history_path in the config or pass --history")
	}
	return openHistory(a.logger, a.config.HistoryPath)
}

func (a *app) historyCommand() *cobra.Command {
	var limit int
	var failedOnly bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent render passes",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.requireHistory()
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := store.Recent(cmd.Context(), limit, failedOnly)
			if err != nil {
				return err
			}
			counts, err := store.Counts(cmd.Context())
			if err != nil {
				return err
			}
			return writeHistory(a.stdout, entries, counts)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of passes to list")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "list failed passes only")
	cmd.AddCommand(a.pruneCommand())
	return cmd
}

func (a *app) pruneCommand() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest passes",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.requireHistory()
			if err != nil {
				return err
			}
			defer closeStore()

			removed, err := store.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			a.logger.Info("Pruned render history", "removed", removed, "kept", keep)
			_, err = fmt.Fprintf(a.stdout, "Removed %d entries\n", removed)
			return err
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 100, "number of newest passes to keep")
	return cmd
}

func writeHistory(w io.Writer, entries []history.Entry, counts map[string]int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tENGINE\tSTATUS\tDURATION\tTEMPLATE\tERROR")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.Engine,
			e.Status,
			e.Duration.Round(time.Microsecond),
			e.Template,
			e.ErrorCode,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	total := counts[history.StatusOK] + counts[history.StatusFailed]
	_, err := fmt.Fprintf(w, "%d passes recorded (%d ok, %d failed)\n",
		total, counts[history.StatusOK], counts[history.StatusFailed])
	return err
}
