package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/weldalign/internal/config"
	"github.com/sells-group/weldalign/internal/model"
	"github.com/sells-group/weldalign/internal/report"
	"github.com/sells-group/weldalign/internal/store"
)

var (
	alignOut    string
	alignSheet1 string
	alignSheet2 string
	alignPlot   string
	alignSave   bool
	alignJSON   bool
)

var alignCmd = &cobra.Command{
	Use:   "align <file1> <file2>",
	Short: "Align two inspection reports and write an xlsx report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		applyAlignFlags(cmd)
		if err := validateAlign(cfg, alignSave); err != nil {
			return err
		}

		var st store.Store
		if alignSave {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		opts, err := newPipelineOptions(cfg)
		if err != nil {
			return err
		}

		res, err := runPipeline(ctx, args[0], args[1], opts)
		if err != nil {
			return err
		}

		out := alignOut
		if out == "" {
			out = defaultReportName(args[0], args[1])
		}
		if err := report.SaveXLSX(out, res.Alignment, res.Matches, res.Summary); err != nil {
			return err
		}
		zap.L().Info("report written", zap.String("path", out))

		if alignPlot != "" {
			if err := report.PlotDeltas(alignPlot, res.Alignment); err != nil {
				if !eris.Is(err, report.ErrNothingToPlot) {
					return err
				}
				zap.L().Warn("plot skipped", zap.Error(err))
			}
		}

		run := res.Run(cfg.Align.Tolerances)
		if st != nil {
			if err := st.SaveRun(ctx, run); err != nil {
				return eris.Wrap(err, "save run")
			}
		}

		if alignJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}

		printSummary(os.Stdout, run, out)
		return nil
	},
}

// validateAlign checks the config an align run needs, including the run
// store when the run will be saved.
func validateAlign(c *config.Config, save bool) error {
	if err := c.Validate("align"); err != nil {
		return err
	}
	if save {
		return c.Validate("runs")
	}
	return nil
}

// applyAlignFlags copies explicitly set flags over the loaded config.
func applyAlignFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("sheet1") {
		cfg.Ingest.Sheet1 = alignSheet1
	}
	if f.Changed("sheet2") {
		cfg.Ingest.Sheet2 = alignSheet2
	}

	tol := &cfg.Align.Tolerances
	for name, dst := range map[string]*float64{
		"distance-tol":   &tol.Distance,
		"clock-tol":      &tol.ClockPosition,
		"length-tol":     &tol.Length,
		"width-tol":      &tol.Width,
		"depth-tol":      &tol.Depth,
		"min-confidence": &tol.MinConfidence,
	} {
		if f.Changed(name) {
			*dst, _ = f.GetFloat64(name)
		}
	}
}

// printSummary writes a colored run summary to w.
func printSummary(w io.Writer, run *model.Run, reportPath string) {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	label := color.New(color.FgYellow).SprintFunc()
	good := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	s := run.Summary
	_, _ = fmt.Fprintf(w, "\n%s\n", title("=== Weld Alignment ==="))
	_, _ = fmt.Fprintf(w, "  %s %s | %s\n", label("Sources:"), run.Source1, run.Source2)
	_, _ = fmt.Fprintf(w, "  %s %.0f\n", label("Base distance:"), s.BaseDistance)
	_, _ = fmt.Fprintf(w, "  %s %d / %d welds (%s source 1 only, %s source 2 only)\n",
		label("Aligned:"), s.AlignedAnchors, max(s.Anchors1, s.Anchors2),
		gray(s.Source1OnlyAnchors), gray(s.Source2OnlyAnchors))

	_, _ = fmt.Fprintf(w, "\n%s\n", title("=== Defect Matching ==="))
	_, _ = fmt.Fprintf(w, "  %s %d | %d\n", label("Defects:"), s.Defects1, s.Defects2)
	_, _ = fmt.Fprintf(w, "  %s %s (%d weld-anchored, %d by relative distance)\n",
		label("Matched:"), good(s.TotalMatched), s.WeldAnchored, s.DistanceExtrapolated)
	for _, t := range model.MatchTypes {
		_, _ = fmt.Fprintf(w, "    %-22s %d\n", t, s.ByType[t])
	}

	if reportPath != "" {
		_, _ = fmt.Fprintf(w, "\n  %s %s\n", label("Report:"), reportPath)
	}
	if run.ID != "" {
		_, _ = fmt.Fprintf(w, "  %s %s\n", label("Run:"), run.ID)
	}
	_, _ = fmt.Fprintln(w)
}

func init() {
	def := model.DefaultTolerances()

	alignCmd.Flags().StringVarP(&alignOut, "out", "o", "", "report path (default aligned_<file1>_<file2>.xlsx)")
	alignCmd.Flags().StringVar(&alignSheet1, "sheet1", "", "sheet name or 0-based index in file1")
	alignCmd.Flags().StringVar(&alignSheet2, "sheet2", "", "sheet name or 0-based index in file2")
	alignCmd.Flags().StringVar(&alignPlot, "plot", "", "write a PNG of the paired weld spacings")
	alignCmd.Flags().BoolVar(&alignSave, "save", false, "save the run to the run history")
	alignCmd.Flags().BoolVar(&alignJSON, "json", false, "print the run as JSON")

	alignCmd.Flags().Float64("distance-tol", def.Distance, "defect distance tolerance (m)")
	alignCmd.Flags().Float64("clock-tol", def.ClockPosition, "defect clock tolerance (degrees)")
	alignCmd.Flags().Float64("length-tol", def.Length, "defect length tolerance (mm)")
	alignCmd.Flags().Float64("width-tol", def.Width, "defect width tolerance (mm)")
	alignCmd.Flags().Float64("depth-tol", def.Depth, "defect depth tolerance")
	alignCmd.Flags().Float64("min-confidence", def.MinConfidence, "minimum defect match confidence")

	rootCmd.AddCommand(alignCmd)
}
