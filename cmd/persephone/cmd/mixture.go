package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/losses"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
	"golang.org/x/exp/rand"
	"gopkg.in/yaml.v3"
)

// mixtureParams is a parsed mixture document.
type mixtureParams struct {
	family  string
	y       *tensor.Dense
	weights *tensor.Dense
	params  []*tensor.Dense // lambdas, or means and stds
	mask    *tensor.Dense
}

func loadMixture(cmd *cobra.Command, path, family string, needY bool) (*mixtureParams, error) {
	var in mixtureInput
	if err := readYAML(cmd.InOrStdin(), path, &in); err != nil {
		return nil, err
	}

	p := &mixtureParams{family: family}
	var err error
	if p.weights, err = cube("weights", in.Weights); err != nil {
		return nil, err
	}
	if needY {
		if p.y, err = matrix("y", in.Y); err != nil {
			return nil, err
		}
		if p.mask, err = optionalMatrix("mask", in.Mask); err != nil {
			return nil, err
		}
	}

	switch family {
	case "poisson":
		lambdas, err := cube("lambdas", in.Lambdas)
		if err != nil {
			return nil, err
		}
		p.params = []*tensor.Dense{lambdas}
	case "gaussian":
		means, err := cube("means", in.Means)
		if err != nil {
			return nil, err
		}
		stds, err := cube("stds", in.Stds)
		if err != nil {
			return nil, err
		}
		p.params = []*tensor.Dense{means, stds}
	default:
		return nil, fmt.Errorf("unknown family %q (want poisson or gaussian)", family)
	}
	return p, nil
}

func (p *mixtureParams) components() int {
	return p.weights.Dim(-1)
}

func newMixtureCmd(a *app) *cobra.Command {
	var family string

	cmd := &cobra.Command{
		Use:   "mixture",
		Short: "Evaluate or sample Poisson and Gaussian mixture likelihoods",
	}
	cmd.PersistentFlags().StringVar(&family, "family", "poisson", "Mixture family: poisson or gaussian")

	nllCmd := &cobra.Command{
		Use:   "nll FILE",
		Short: "Print the masked negative log likelihood of y",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadMixture(cmd, args[0], family, true)
			if err != nil {
				return err
			}

			var nll float64
			switch family {
			case "poisson":
				pm, err := losses.NewPoissonMixture(p.components(), nil)
				if err != nil {
					return err
				}
				nll, err = pm.NegLogLikelihood(p.y, p.weights, p.params[0], p.mask)
				if err != nil {
					return err
				}
			case "gaussian":
				gm, err := losses.NewGaussianMixture(p.components(), nil)
				if err != nil {
					return err
				}
				nll, err = gm.NegLogLikelihood(p.y, p.weights, p.params[0], p.params[1], p.mask)
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "nll: %g\n", nll)
			return nil
		},
	}

	var (
		qf      quantileFlags
		samples int
		seed    uint64
	)
	sampleCmd := &cobra.Command{
		Use:   "sample FILE",
		Short: "Draw samples from the mixture and print their quantiles as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadMixture(cmd, args[0], family, false)
			if err != nil {
				return err
			}
			set, err := qf.resolve(a)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("samples") {
				samples = a.cfg.NumSamples
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.Seed
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			src := rand.NewSource(seed)

			var res *losses.SampleResult
			switch family {
			case "poisson":
				pm, err := losses.NewPoissonMixture(p.components(), set)
				if err != nil {
					return err
				}
				res, err = pm.Sample(p.weights, p.params[0], samples, src)
				if err != nil {
					return err
				}
			case "gaussian":
				gm, err := losses.NewGaussianMixture(p.components(), set)
				if err != nil {
					return err
				}
				res, err = gm.Sample(p.weights, p.params[0], p.params[1], samples, src)
				if err != nil {
					return err
				}
			}
			if res == nil {
				return errors.New("no samples drawn")
			}

			a.logger.Debug("sampled mixture", "family", family, "samples", samples, "seed", seed)
			out, err := yaml.Marshal(map[string]any{
				"names":     res.Names,
				"quantiles": res.Quantiles.Cube(),
			})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	qf.register(sampleCmd)
	sampleCmd.Flags().IntVar(&samples, "samples", losses.DefaultNumSamples, "Samples per cell (defaults to num_samples)")
	sampleCmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed; 0 uses the configured seed or the clock")

	cmd.AddCommand(nllCmd, sampleCmd)
	return cmd
}
