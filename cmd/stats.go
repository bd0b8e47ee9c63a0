package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/weldalign/internal/align"
	"github.com/sells-group/weldalign/internal/dispersion"
	"github.com/sells-group/weldalign/internal/ingest"
	"github.com/sells-group/weldalign/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats <file1> <file2>",
	Short: "Show weld spacing statistics and candidate base distances",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := newPipelineOptions(cfg)
		if err != nil {
			return err
		}

		s1, err := ingest.Load(args[0], 1, opts.Ingest1)
		if err != nil {
			return err
		}
		s2, err := ingest.Load(args[1], 2, opts.Ingest2)
		if err != nil {
			return err
		}

		d1, d2 := s1.Sequence.Deltas, s2.Sequence.Deltas
		formatStats(os.Stdout, dispersion.Compute(d1, d2), align.Candidates(d1, d2), s1.Sequence.Len(), s2.Sequence.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// formatStats writes dispersion statistics to w.
func formatStats(out io.Writer, s model.Stats, candidates []float64, n1, n2 int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Welds:\t%d | %d\n", n1, n2)
	_, _ = fmt.Fprintf(w, "Mean:\t%.3f\n", s.Mean)
	_, _ = fmt.Fprintf(w, "Std:\t%.3f\n", s.Std)
	_, _ = fmt.Fprintf(w, "CV:\t%.3f\n", s.CV)
	_, _ = fmt.Fprintf(w, "Quartiles:\t%.3f / %.3f / %.3f\n", s.Q25, s.Q50, s.Q75)
	_, _ = fmt.Fprintf(w, "IQR:\t%.3f\n", s.IQR)
	_, _ = fmt.Fprintf(w, "Filtered mean:\t%.3f\n", s.FilteredMean)
	_, _ = fmt.Fprintf(w, "Filtered std:\t%.3f\n", s.FilteredStd)
	_, _ = fmt.Fprintf(w, "Filtered CV:\t%.3f\n", s.FilteredCV)
	_, _ = fmt.Fprintf(w, "Candidates:\t%v\n", candidates)
	_ = w.Flush()
}
