package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/weldalign/internal/align"
	"github.com/sells-group/weldalign/internal/config"
	"github.com/sells-group/weldalign/internal/defect"
	"github.com/sells-group/weldalign/internal/ingest"
	"github.com/sells-group/weldalign/internal/model"
	"github.com/sells-group/weldalign/internal/report"
)

// pipelineOptions carries everything one alignment needs besides the two
// input files.
type pipelineOptions struct {
	Ingest1    ingest.Options
	Ingest2    ingest.Options
	Search     align.SearchOptions
	Tolerances model.Tolerances
}

// pipelineResult is the output of runPipeline.
type pipelineResult struct {
	Source1   *ingest.Source
	Source2   *ingest.Source
	Alignment *model.AlignmentResult
	Matches   []model.DefectMatch
	Summary   model.Summary
}

// newPipelineOptions builds pipeline options from the loaded config.
func newPipelineOptions(c *config.Config) (pipelineOptions, error) {
	var aliases ingest.Aliases
	if c.Ingest.AliasesPath != "" {
		a, err := ingest.LoadAliases(c.Ingest.AliasesPath)
		if err != nil {
			return pipelineOptions{}, err
		}
		aliases = a
	}

	return pipelineOptions{
		Ingest1: ingest.Options{Sheet: c.Ingest.Sheet1, Charset: c.Ingest.Charset, Aliases: aliases},
		Ingest2: ingest.Options{Sheet: c.Ingest.Sheet2, Charset: c.Ingest.Charset, Aliases: aliases},
		Search: align.SearchOptions{
			Concurrency: c.Align.Concurrency,
			Candidates:  c.Align.Candidates,
		},
		Tolerances: c.Align.Tolerances,
	}, nil
}

// runPipeline loads both sources, aligns their welds and matches their
// defects.
func runPipeline(ctx context.Context, path1, path2 string, opts pipelineOptions) (*pipelineResult, error) {
	s1, err := ingest.Load(path1, 1, opts.Ingest1)
	if err != nil {
		return nil, eris.Wrap(err, "load source 1")
	}
	s2, err := ingest.Load(path2, 2, opts.Ingest2)
	if err != nil {
		return nil, eris.Wrap(err, "load source 2")
	}

	res, err := align.Search(ctx, s1.Sequence, s2.Sequence, opts.Search)
	if err != nil {
		return nil, err
	}

	matches := defect.Match(s1.Defects, s2.Defects, res, opts.Tolerances)
	defect.Sort(matches)
	summary := report.BuildSummary(res, matches, len(s1.Defects), len(s2.Defects))

	zap.L().Info("alignment complete",
		zap.String("source1", s1.Name),
		zap.String("source2", s2.Name),
		zap.Float64("base_distance", res.BaseDistance),
		zap.Int("aligned_anchors", res.AlignedCount),
		zap.Int("matched_defects", summary.TotalMatched),
	)

	return &pipelineResult{
		Source1:   s1,
		Source2:   s2,
		Alignment: res,
		Matches:   matches,
		Summary:   summary,
	}, nil
}

// Run converts the result into a run history record.
func (r *pipelineResult) Run(tol model.Tolerances) *model.Run {
	return &model.Run{
		Source1:      r.Source1.Name,
		Source2:      r.Source2.Name,
		BaseDistance: r.Alignment.BaseDistance,
		Summary:      r.Summary,
		Stats:        r.Alignment.Stats,
		Tolerances:   tol,
		Matches:      r.Matches,
	}
}

// defaultReportName derives "aligned_<a>_<b>.xlsx" from the input names.
func defaultReportName(path1, path2 string) string {
	stem := func(p string) string {
		base := filepath.Base(p)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "aligned_" + stem(path1) + "_" + stem(path2) + ".xlsx"
}
