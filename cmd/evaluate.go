package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/dataset"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/pipeline"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [file-or-dir ...]",
	Short: "Evaluate CSV/XLSX datasets and write compliance reports",
	Long:  "Evaluates every .csv and .xlsx file given (directories are scanned, non-recursively). With no arguments the Dataset directory is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyEvaluateFlags(cmd, cfg); err != nil {
			return err
		}

		if len(args) == 0 {
			args = []string{"Dataset"}
		}
		paths, err := dataset.Expand(args)
		if err != nil {
			return eris.Wrap(err, "evaluate: resolve inputs")
		}
		if len(paths) == 0 {
			return eris.New("evaluate: no .csv or .xlsx files found")
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		p := pipeline.New(cfg, st, nil)
		res, err := p.RunBatch(ctx, paths)
		if res != nil {
			formatSummary(os.Stdout, res.Summary)
			for _, a := range res.Artifacts {
				zap.L().Info("evaluate: wrote artifact", zap.String("path", a))
			}
		}
		return err
	},
}

func init() {
	addEvaluateFlags(evaluateCmd)
	rootCmd.AddCommand(evaluateCmd)
}

func addEvaluateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("out", "", "output directory (default from config)")
	f.String("format", "", "structured report format: json or yaml (default from config)")
	f.String("target", "", "target column name (default: last column)")
	f.Uint64("seed", 0, "random seed (default from config)")
	f.Int("concurrency", 0, "max datasets evaluated at once (default from config)")
	f.Bool("xlsx", false, "also write results.xlsx")
}

// applyEvaluateFlags overrides configuration with explicitly set flags.
func applyEvaluateFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if f.Changed("out") {
		c.Output.Dir, _ = f.GetString("out")
	}
	if f.Changed("format") {
		c.Output.ReportFormat, _ = f.GetString("format")
	}
	if f.Changed("target") {
		c.Scoring.TargetColumn, _ = f.GetString("target")
	}
	if f.Changed("seed") {
		c.Scoring.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("concurrency") {
		c.Batch.MaxConcurrentDatasets, _ = f.GetInt("concurrency")
	}
	if f.Changed("xlsx") {
		c.Output.SummaryXLSX, _ = f.GetBool("xlsx")
	}
	return c.Validate()
}

// formatSummary writes the consolidated score table to w.
func formatSummary(out io.Writer, s *model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tFAIRNESS\tTRANSPARENCY\tROBUSTNESS\tPRIVACY\tACCOUNTABILITY\tCOMPOSITE")
	for _, row := range s.Rows {
		_, _ = fmt.Fprintf(w, "%s", row.File)
		for _, p := range model.Pillars {
			_, _ = fmt.Fprintf(w, "\t%s", row.SubScores[p].String())
		}
		_, _ = fmt.Fprintf(w, "\t%s\n", row.Composite.String())
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d evaluated, %d failed\n", s.Succeeded(), s.Failed())
}
