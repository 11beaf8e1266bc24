package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crsarena/arena-eval/internal/client"
	"github.com/crsarena/arena-eval/internal/report"
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Evaluate a run on a running arena-eval server",
		Example: `  arena-eval submit --server http://localhost:8080 --run predictions.json
  arena-eval submit --run predictions.json --compare --dataset opendialkg --metric spearman
  arena-eval submit --run predictions.json --xlsx report.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, _ := cmd.Flags().GetString("server")
			runPath, _ := cmd.Flags().GetString("run")
			format, _ := cmd.Flags().GetString("format")
			xlsxPath, _ := cmd.Flags().GetString("xlsx")
			compare, _ := cmd.Flags().GetBool("compare")

			if runPath == "" {
				return fmt.Errorf("--run is required")
			}
			mode, ok := report.ParseMode(format)
			if !ok && format != "json" {
				return fmt.Errorf("unknown format %q (text, markdown, json)", format)
			}

			run, err := os.ReadFile(runPath)
			if err != nil {
				return fmt.Errorf("reading run: %w", err)
			}

			ctx := cmd.Context()
			c := client.New(client.Config{BaseURL: serverURL})
			out := cmd.OutOrStdout()

			if xlsxPath != "" {
				f, err := os.Create(xlsxPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", xlsxPath, err)
				}
				if err := c.Export(ctx, run, f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
			}

			if compare {
				dataset, _ := cmd.Flags().GetString("dataset")
				metric, _ := cmd.Flags().GetString("metric")
				baselineName, _ := cmd.Flags().GetString("baseline")

				resp, err := c.Compare(ctx, run, client.CompareOptions{Dataset: dataset, Metric: metric, Baseline: baselineName})
				if err != nil {
					return err
				}
				if format == "json" {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(resp)
				}
				return report.RenderComparison(out, mode, resp.Comparison)
			}

			rep, err := c.Evaluate(ctx, run)
			if err != nil {
				return err
			}
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return report.RenderReport(out, mode, rep)
		},
	}

	cmd.Flags().String("server", "http://localhost:8080", "arena-eval server URL")
	cmd.Flags().StringP("run", "r", "", "run document to evaluate (required)")
	cmd.Flags().StringP("format", "f", "text", "output format (text, markdown, json)")
	cmd.Flags().String("xlsx", "", "also download the report as an XLSX workbook")
	cmd.Flags().Bool("compare", false, "print the baseline comparison instead of the report")
	cmd.Flags().StringP("dataset", "d", "", "comparison dataset (server default: redial)")
	cmd.Flags().StringP("metric", "m", "", "comparison metric (server default: pearson)")
	cmd.Flags().StringP("baseline", "b", "", "comparison baseline (server default: first by name)")

	return cmd
}
