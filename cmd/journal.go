package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/cmd/utils"
	"github.com/starkescrow/starkescrow/internal/data"
	"github.com/starkescrow/starkescrow/internal/db"
	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/tracker"
)

type journalCmd struct{}

func (c *journalCmd) Command() *cobra.Command {
	var databaseURL string
	databaseURLOption := utils.DatabaseURLOption(&databaseURL)
	databaseURLOption.Required = true
	cfgOpts := config.ConfigOptions{databaseURLOption}

	var pool db.ConnectionPool
	var runner *journalRunner

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and prune the attempt journal",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.DefaultPersistentPreRunE(cfgOpts)(cmd, args); err != nil {
				return err
			}

			var err error
			pool, err = db.OpenDBConnectionPool(databaseURL)
			if err != nil {
				return fmt.Errorf("opening connection pool: %w", err)
			}
			models, err := data.NewModels(pool, metrics.NewMetricsService(nil))
			if err != nil {
				return fmt.Errorf("creating models: %w", err)
			}
			runner = &journalRunner{attempts: models.Attempts, out: cmd.OutOrStdout(), now: time.Now}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if pool != nil {
				if err := pool.Close(); err != nil {
					log.Ctx(cmd.Context()).Errorf("closing connection pool: %v", err)
				}
			}
		},
	}

	var filter data.HistoryFilter
	var phase string
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded attempts, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter.Phase = tracker.Phase(strings.ToUpper(phase))
			return runner.history(cmd.Context(), filter)
		},
	}
	historyCmd.Flags().StringSliceVar(&filter.Actions, "action", nil, `Only attempts of these actions, e.g. "create" or "escrow:7:release"`)
	historyCmd.Flags().StringVar(&phase, "phase", "", `Only attempts in this phase: "PENDING", "SUCCESS" or "ERROR"`)
	historyCmd.Flags().IntVar(&filter.Limit, "limit", data.DefaultHistoryLimit, "Maximum number of attempts listed")
	cmd.AddCommand(historyCmd)

	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished attempts older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runner.prune(cmd.Context(), olderThan)
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Attempts last updated before this age are deleted")
	cmd.AddCommand(pruneCmd)

	if err := cfgOpts.Init(cmd); err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}

type attemptJournal interface {
	History(ctx context.Context, filter data.HistoryFilter) ([]data.AttemptRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type journalRunner struct {
	attempts attemptJournal
	out      io.Writer
	now      func() time.Time
}

func (r *journalRunner) history(ctx context.Context, filter data.HistoryFilter) error {
	switch filter.Phase {
	case "", tracker.PhaseIdle, tracker.PhasePending, tracker.PhaseSuccess, tracker.PhaseError:
	default:
		return fmt.Errorf("invalid phase %q", filter.Phase)
	}

	records, err := r.attempts.History(ctx, filter)
	if err != nil {
		return fmt.Errorf("loading attempt history: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(r.out, "No attempts recorded.")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UPDATED\tACTION\tPHASE\tSTAGE\tTRANSACTION\tERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.UpdatedAt.UTC().Format(time.RFC3339), rec.Action, rec.Phase, rec.Stage,
			orDash(rec.TransactionHash.String), orDash(rec.ErrorMessage.String))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing attempt history: %w", err)
	}
	return nil
}

func (r *journalRunner) prune(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive, got %s", olderThan)
	}

	deleted, err := r.attempts.DeleteBefore(ctx, r.now().Add(-olderThan))
	if err != nil {
		return fmt.Errorf("pruning attempts: %w", err)
	}
	log.Ctx(ctx).Infof("Pruned %d attempts older than %s", deleted, olderThan)
	fmt.Fprintf(r.out, "Deleted %d attempts.\n", deleted)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
