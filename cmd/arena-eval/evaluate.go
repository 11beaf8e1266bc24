package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crsarena/arena-eval/internal/evaluation"
	"github.com/crsarena/arena-eval/internal/report"
	"github.com/crsarena/arena-eval/internal/watch"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a run against the gold annotations",
		Long: `Evaluate a run document and print the turn-level and dialogue-level
correlation tables. Each cell shows Pearson/Spearman; "nan" marks cells with
too few or degenerate pairs.

With --watch the run is re-evaluated every time the file is saved.`,
		Example: `  arena-eval evaluate --run predictions.json
  arena-eval evaluate --run predictions.json --format markdown
  arena-eval evaluate --run predictions.json --format json --xlsx report.xlsx
  arena-eval evaluate --run predictions.json --watch`,
		RunE: runEvaluate,
	}

	cmd.Flags().StringP("run", "r", "", "run document to evaluate (required)")
	cmd.Flags().StringP("format", "f", "text", "output format (text, markdown, json)")
	cmd.Flags().String("xlsx", "", "also write the report as an XLSX workbook")
	cmd.Flags().BoolP("watch", "w", false, "re-evaluate whenever the run file changes")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	runPath, _ := cmd.Flags().GetString("run")
	format, _ := cmd.Flags().GetString("format")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	watchRun, _ := cmd.Flags().GetBool("watch")

	if runPath == "" {
		return fmt.Errorf("--run is required")
	}
	mode, ok := report.ParseMode(format)
	if !ok && format != "json" {
		return fmt.Errorf("unknown format %q (text, markdown, json)", format)
	}

	if !watchRun {
		_, rep, err := evaluateRun(cmd)
		if err != nil {
			return err
		}
		return emitReport(cmd, rep, format, mode, xlsxPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, log, err := newEvaluator(ctx, cmd)
	if err != nil {
		return err
	}

	evaluateOnce := func(ctx context.Context) {
		run, err := os.ReadFile(runPath)
		if err == nil {
			var rep *evaluation.Report
			if rep, err = e.Evaluate(ctx, run); err == nil {
				err = emitReport(cmd, rep, format, mode, xlsxPath)
			}
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "evaluation failed: %v\n", err)
		}
	}

	w, err := watch.New(watch.Config{Paths: []string{runPath}, Log: log})
	if err != nil {
		return err
	}
	evaluateOnce(ctx)
	return w.Run(ctx, evaluateOnce)
}

func emitReport(cmd *cobra.Command, rep *evaluation.Report, format string, mode report.Mode, xlsxPath string) error {
	if xlsxPath != "" {
		if err := writeXLSXFile(xlsxPath, rep); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return report.RenderReport(out, mode, rep)
}

func systemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "systems",
		Short: "Print the per-system Spearman leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			_, rep, err := evaluateRun(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep.Systems)
			}
			mode, ok := report.ParseMode(format)
			if !ok {
				return fmt.Errorf("unknown format %q (text, markdown, json)", format)
			}
			return report.RenderSystemTable(out, mode, rep.Systems)
		},
	}

	cmd.Flags().StringP("run", "r", "", "run document to evaluate (required)")
	cmd.Flags().StringP("format", "f", "text", "output format (text, markdown, json)")

	return cmd
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a run with a baseline evaluator on one dataset",
		Example: `  arena-eval compare --run predictions.json --dataset redial
  arena-eval compare --run predictions.json --dataset opendialkg --metric spearman --baseline gpt-4o`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, _ := cmd.Flags().GetString("dataset")
			metricName, _ := cmd.Flags().GetString("metric")
			baselineName, _ := cmd.Flags().GetString("baseline")
			format, _ := cmd.Flags().GetString("format")

			metric, ok := evaluation.ParseMetric(metricName)
			if !ok {
				return fmt.Errorf("unknown metric %q (pearson, spearman)", metricName)
			}

			e, rep, err := evaluateRun(cmd)
			if err != nil {
				return err
			}

			comparison, err := report.Compare(dataset, metric, report.ReportSeries(rep), e.Reference().Baselines, baselineName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(comparison)
			}
			mode, ok := report.ParseMode(format)
			if !ok {
				return fmt.Errorf("unknown format %q (text, markdown, json)", format)
			}
			return report.RenderComparison(out, mode, comparison)
		},
	}

	cmd.Flags().StringP("run", "r", "", "run document to evaluate (required)")
	cmd.Flags().StringP("dataset", "d", "redial", "dataset (redial, opendialkg)")
	cmd.Flags().StringP("metric", "m", "pearson", "metric (pearson, spearman)")
	cmd.Flags().StringP("baseline", "b", "", "baseline evaluator (default: first by name)")
	cmd.Flags().StringP("format", "f", "text", "output format (text, markdown, json)")

	return cmd
}

func writeXLSXFile(path string, rep *evaluation.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := report.WriteXLSX(f, rep); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
