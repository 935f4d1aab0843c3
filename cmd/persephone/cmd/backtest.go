package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tartarus-sandbox/persephone/pkg/hermes"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/evaluator"
)

func newBacktestCmd(a *app) *cobra.Command {
	var (
		qf          quantileFlags
		seriesID    string
		startStr    string
		endStr      string
		trainWindow time.Duration
		stepSize    time.Duration
		archive     bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest the quantile forecaster against stored history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			end := time.Now().UTC()
			if endStr != "" {
				t, err := time.Parse(time.RFC3339, endStr)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				end = t
			}
			start := end.Add(-7 * 24 * time.Hour)
			if startStr != "" {
				t, err := time.Parse(time.RFC3339, startStr)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				start = t
			}

			set, err := qf.resolve(a)
			if err != nil {
				return err
			}

			store, err := openStore(a.cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			if seriesID == "" {
				series, err := store.Series(ctx)
				if err != nil {
					return err
				}
				if len(series) != 1 {
					return fmt.Errorf("--series is required when the store holds %d series", len(series))
				}
				seriesID = series[0]
			}

			bt, err := evaluator.NewBacktester(evaluator.BacktesterConfig{
				Store:       store,
				QuantileSet: set,
				Resolution:  a.cfg.Backtest.Resolution,
				Concurrency: a.cfg.Backtest.Concurrency,
				Metrics:     hermes.NewPrometheusMetrics(prometheus.NewRegistry()),
				Logger:      hermes.NewSlogAdapter(a.logger),
			})
			if err != nil {
				return err
			}

			report, err := bt.Run(ctx, seriesID, start, end, trainWindow, stepSize)
			if err != nil {
				return err
			}
			printReport(cmd, report)

			if !archive {
				return nil
			}
			blobs, err := openArchive(ctx, a.cfg.Archive)
			if err != nil {
				return err
			}
			if blobs == nil {
				return fmt.Errorf("--archive needs archive.backend set to local or s3")
			}
			key, err := evaluator.NewArchive(blobs).Save(ctx, report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived: %s\n", key)
			return nil
		},
	}

	qf.register(cmd)
	cmd.Flags().StringVar(&seriesID, "series", "", "Series to backtest (optional when the store holds one series)")
	cmd.Flags().StringVar(&startStr, "start", "", "Start of the backtest, RFC3339 (default: a week before --end)")
	cmd.Flags().StringVar(&endStr, "end", "", "End of the backtest, RFC3339 (default: now)")
	cmd.Flags().DurationVar(&trainWindow, "train-window", 7*24*time.Hour, "History used to fit each step")
	cmd.Flags().DurationVar(&stepSize, "step", 6*time.Hour, "Forecast horizon of each step")
	cmd.Flags().BoolVar(&archive, "archive", false, "Archive the report to the configured blob store")
	return cmd
}

func printReport(cmd *cobra.Command, r *evaluator.EvaluationReport) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "report:      %s\n", r.ID)
	fmt.Fprintf(w, "series:      %s\n", r.SeriesID)
	fmt.Fprintf(w, "windows:     %d\n", r.Windows)
	fmt.Fprintf(w, "predictions: %d\n", len(r.Predictions))
	if len(r.Actuals) == 0 {
		fmt.Fprintln(w, "no forecasts matched stored observations")
		return
	}

	m := r.OverallMetrics
	fmt.Fprintf(w, "mape:        %.2f%%\n", m.MAPE)
	fmt.Fprintf(w, "rmse:        %g\n", m.RMSE)
	fmt.Fprintf(w, "coverage:    %.2f%%\n", m.Coverage)

	if q := r.Quantile; q != nil {
		fmt.Fprintf(w, "mqloss:      %g\n", q.MQLoss)
		fmt.Fprintf(w, "wmqloss:     %g\n", q.WMQLoss)
		levels := make([]string, 0, len(q.Coverage))
		for level := range q.Coverage {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		for _, level := range levels {
			fmt.Fprintf(w, "coverage-%s: %.2f%%\n", level, q.Coverage[level])
		}
	}
}
