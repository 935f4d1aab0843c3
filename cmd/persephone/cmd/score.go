package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/losses"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		qf   quantileFlags
		loss string
		q    float64
	)

	cmd := &cobra.Command{
		Use:   "score FILE",
		Short: "Evaluate a quantile loss on a YAML document of targets and predictions",
		Long: `Reads {y, y_hat, mask} from FILE ("-" for stdin). For mqloss and wmqloss
y_hat is the raw [B, H*Q] model output and is reshaped to [B, H, Q]; for ql
it has the shape of y.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in scoreInput
			if err := readYAML(cmd.InOrStdin(), args[0], &in); err != nil {
				return err
			}
			y, err := matrix("y", in.Y)
			if err != nil {
				return err
			}
			raw, err := matrix("y_hat", in.YHat)
			if err != nil {
				return err
			}
			mask, err := optionalMatrix("mask", in.Mask)
			if err != nil {
				return err
			}

			var value float64
			switch loss {
			case "ql":
				ql, err := losses.NewQuantileLoss(q)
				if err != nil {
					return err
				}
				if value, err = ql.Loss(y, raw, mask); err != nil {
					return err
				}
			case "mqloss", "wmqloss":
				set, err := qf.resolve(a)
				if err != nil {
					return err
				}
				var fn interface {
					losses.OutputAdapter
					Loss(y, yHat, mask *tensor.Dense) (float64, error)
				}
				if loss == "mqloss" {
					fn = losses.NewMQLoss(set)
				} else {
					fn = losses.NewWMQLoss(set)
				}
				yHat, err := fn.AdaptOutput(raw)
				if err != nil {
					return err
				}
				if value, err = fn.Loss(y, yHat, mask); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown loss %q (want mqloss, wmqloss or ql)", loss)
			}

			a.logger.Debug("scored", "loss", loss, "value", value)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %g\n", loss, value)
			return nil
		},
	}

	qf.register(cmd)
	cmd.Flags().StringVar(&loss, "loss", "mqloss", "Loss to evaluate: mqloss, wmqloss or ql")
	cmd.Flags().Float64Var(&q, "q", 0.5, "Quantile fraction for --loss ql")
	return cmd
}
