package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tartarus-sandbox/persephone/pkg/persephone"
)

func newPlanCmd(a *app) *cobra.Command {
	var (
		qf          quantileFlags
		seriesID    string
		atStr       string
		trainWindow time.Duration
		horizon     time.Duration
		step        time.Duration
		target      float64
		bounds      persephone.CapacityBounds
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Recommend capacity for the upper forecast quantile of a stored series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			now := time.Now().UTC()
			if atStr != "" {
				t, err := time.Parse(time.RFC3339, atStr)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = t
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

			history, err := store.Load(ctx, seriesID, now.Add(-trainWindow), now)
			if err != nil {
				return err
			}

			plan, err := persephone.NewCapacityPlanner(set, bounds).Plan(history, now, horizon, step, target)
			if err != nil {
				return err
			}
			a.logger.Debug("capacity plan", "series", seriesID, "observations", len(history), "quantile", plan.Quantile)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "series:      %s\n", seriesID)
			fmt.Fprintf(w, "quantile:    %g (%s)\n", plan.Quantile, plan.Name)
			fmt.Fprintf(w, "current:     %g\n", plan.Current)
			fmt.Fprintf(w, "peak:        %g\n", plan.PeakDemand)
			fmt.Fprintf(w, "recommended: %d\n", plan.Recommended)
			fmt.Fprintf(w, "reason:      %s\n", plan.Reason)
			fmt.Fprintf(w, "confidence:  %.2f\n", plan.Confidence)
			return nil
		},
	}

	qf.register(cmd)
	cmd.Flags().StringVar(&seriesID, "series", "", "Series to plan for")
	cmd.Flags().StringVar(&atStr, "at", "", "Planning time, RFC3339 (default: now)")
	cmd.Flags().DurationVar(&trainWindow, "train-window", 7*24*time.Hour, "History used to fit the forecast")
	cmd.Flags().DurationVar(&horizon, "horizon", time.Hour, "How far ahead to provision")
	cmd.Flags().DurationVar(&step, "step", 15*time.Minute, "Forecast resolution")
	cmd.Flags().Float64Var(&target, "target", 0.7, "Target utilization of each unit, in (0, 1]")
	cmd.Flags().IntVar(&bounds.Min, "min", 1, "Minimum recommendation")
	cmd.Flags().IntVar(&bounds.Max, "max", 0, "Maximum recommendation (0: unbounded)")
	_ = cmd.MarkFlagRequired("series")
	return cmd
}
