package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tartarus-sandbox/persephone/pkg/config"
	"github.com/tartarus-sandbox/persephone/pkg/hermes"
)

// app is the state shared by every subcommand once the root has loaded the
// configuration.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the persephone command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "persephone",
		Short: "Probabilistic forecast losses and evaluation",
		Long: `Persephone scores quantile forecasts, evaluates and samples mixture
likelihoods, and backtests forecasts against stored metric history.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			a.logger = hermes.NewJSONLogger(cfg.LogLevel, cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(
		newQuantilesCmd(a),
		newScoreCmd(a),
		newMixtureCmd(a),
		newBacktestCmd(a),
		newPlanCmd(a),
		newIngestCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}
