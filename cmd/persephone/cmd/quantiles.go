package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/losses"
)

// quantileFlags selects a quantile set on the command line, falling back
// to the configuration.
type quantileFlags struct {
	levels    []int
	quantiles []float64
}

func (f *quantileFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&f.levels, "level", nil, "Prediction-interval level in percent (repeatable)")
	cmd.Flags().Float64SliceVar(&f.quantiles, "quantile", nil, "Explicit quantile fraction in (0, 1) (repeatable)")
}

func (f *quantileFlags) resolve(a *app) (*losses.QuantileSet, error) {
	if len(f.levels) > 0 || len(f.quantiles) > 0 {
		return losses.NewQuantileSet(f.levels, f.quantiles)
	}
	return a.cfg.QuantileSet()
}

func newQuantilesCmd(a *app) *cobra.Command {
	var qf quantileFlags

	cmd := &cobra.Command{
		Use:   "quantiles",
		Short: "Print the quantile set and its output labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := qf.resolve(a)
			if err != nil {
				return err
			}
			names := set.Names()
			for i, q := range set.Quantiles() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %g\n", names[i], q)
			}
			return nil
		},
	}
	qf.register(cmd)
	return cmd
}
