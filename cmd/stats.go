package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/monitoring"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(st).Collect(ctx, int(since/time.Hour))
		if err != nil {
			return err
		}

		formatStats(os.Stdout, snap)
		return nil
	},
}

func init() {
	statsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 168h; 0 for all)")
	rootCmd.AddCommand(statsCmd)
}

// formatStats writes a snapshot to w.
func formatStats(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Reported:\t%d\n", s.Reported)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "In progress:\t%d\n", s.InProgress)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", s.FailRate*100)
	_, _ = fmt.Fprintf(w, "Avg composite:\t%s\n", s.AvgComposite.String())
	if s.Reported > 0 {
		_, _ = fmt.Fprintln(w, "Pillar availability:")
		for _, p := range model.Pillars {
			_, _ = fmt.Fprintf(w, "  %s:\t%.0f%%\n", p.Title(), s.Availability[p]*100)
		}
	}
	_ = w.Flush()
}
