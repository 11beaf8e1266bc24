// Package main provides the arena-eval binary: score a conversational
// recommender evaluator's predictions against CRSArena-Eval gold annotations.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crsarena/arena-eval/internal/config"
	"github.com/crsarena/arena-eval/internal/evaluation"
	"github.com/crsarena/arena-eval/internal/pkg/logger"
	"github.com/crsarena/arena-eval/internal/source"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arena-eval",
		Short: "CRSArena-Eval - score CRS evaluators against human judgments",
		Long: `arena-eval correlates an evaluator's turn-level and dialogue-level
predictions with the CRSArena-Eval human annotations, per dataset and per
system, using Pearson and Spearman correlation.

Run 'arena-eval evaluate --run predictions.json' to score a run.
Run 'arena-eval serve' to start the HTTP server.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("gold", "", "gold annotations file or URL (overrides config)")
	rootCmd.PersistentFlags().String("baselines", "", "baselines file or URL (overrides config)")

	rootCmd.AddCommand(
		evaluateCmd(),
		systemsCmd(),
		compareCmd(),
		serveCmd(),
		submitCmd(),
		eventsCmd(),
		versionCmd(),
	)

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "arena-eval %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	appCfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("gold") {
		appCfg.Data.Gold, _ = cmd.Flags().GetString("gold")
	}
	if cmd.Flags().Changed("baselines") {
		appCfg.Data.Baselines, _ = cmd.Flags().GetString("baselines")
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		appCfg.Log.Level = "debug"
	}
	return appCfg, nil
}

// cliLogger logs to stderr so rendered output on stdout stays clean.
func cliLogger(cmd *cobra.Command, appCfg *config.Config) *logger.Logger {
	return logger.NewWithWriter(appCfg.Log.Level, appCfg.Log.Format, cmd.ErrOrStderr())
}

// newEvaluator loads the reference data and returns an evaluator without
// cache or bus, suitable for one-shot CLI use.
func newEvaluator(ctx context.Context, cmd *cobra.Command) (*evaluation.Evaluator, *logger.Logger, error) {
	appCfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log := cliLogger(cmd, appCfg)

	loader := source.NewLoader(appCfg.Data.FetchTimeout)
	ref, err := source.LoadReference(ctx, loader, appCfg.Data.Gold, appCfg.Data.Baselines, log)
	if err != nil {
		return nil, nil, err
	}
	e, err := evaluation.NewEvaluator(ref, evaluation.Deps{Log: log})
	if err != nil {
		return nil, nil, err
	}
	return e, log, nil
}

// evaluateRun scores the run file named by the --run flag.
func evaluateRun(cmd *cobra.Command) (*evaluation.Evaluator, *evaluation.Report, error) {
	runPath, _ := cmd.Flags().GetString("run")
	if runPath == "" {
		return nil, nil, fmt.Errorf("--run is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	e, _, err := newEvaluator(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	run, err := source.NewLoader(0).Load(ctx, runPath)
	if err != nil {
		return nil, nil, err
	}

	rep, err := e.Evaluate(ctx, run)
	if err != nil {
		return nil, nil, err
	}
	return e, rep, nil
}
