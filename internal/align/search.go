package align

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/weldalign/internal/dispersion"
	"github.com/sells-group/weldalign/internal/model"
)

const (
	defaultCandidate = 10
	minCandidate     = 5
	maxCandidate     = 300
	maxCandidates    = 3
)

// emptyPoolCandidates are tried when neither source has a positive delta.
var emptyPoolCandidates = []float64{10, 50, 100, 200}

// SearchOptions tunes the base-distance search.
type SearchOptions struct {
	// Concurrency caps the number of engine runs in flight. Zero or less
	// runs one candidate at a time.
	Concurrency int
	// Candidates overrides the derived window sizes when non-empty.
	Candidates []float64
}

// Candidates derives the accumulation windows to try from the pooled
// deltas: mean+std scaled by 1, 5 and 10, plus 10. Duplicates are removed
// among the rounded values, values outside [5,300] are dropped, the rest
// ceiled, and the three smallest kept in ascending order. Ceiling may make
// two windows equal; both are kept.
func Candidates(d1, d2 []float64) []float64 {
	pool := dispersion.Pool(d1, d2)
	if len(pool) == 0 {
		return append([]float64(nil), emptyPoolCandidates...)
	}

	mean, std := stat.PopMeanStdDev(pool, nil)
	if std <= 0 {
		return []float64{defaultCandidate}
	}

	span := mean + std
	raw := []float64{
		model.Round(span, 1),
		model.Round(5*span, 1),
		model.Round(10*span, 1),
		defaultCandidate,
	}

	seen := make(map[float64]bool, len(raw))
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if seen[v] {
			continue
		}
		seen[v] = true
		if v < minCandidate || v > maxCandidate {
			continue
		}
		out = append(out, math.Ceil(v))
	}
	sort.Float64s(out)
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// Search runs the engine once per candidate window and returns the result
// with the most paired anchors. Runs may execute concurrently, but the
// winner is always the first maximum in ascending candidate order. When no
// candidate pairs anything the first candidate's result is returned.
func Search(ctx context.Context, s1, s2 model.AnchorSequence, opts SearchOptions) (*model.AlignmentResult, error) {
	cands := opts.Candidates
	if len(cands) == 0 {
		cands = Candidates(s1.Deltas, s2.Deltas)
	} else {
		cands = append([]float64(nil), cands...)
		sort.Float64s(cands)
	}
	stats := dispersion.Compute(s1.Deltas, s2.Deltas)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	results := make([]*model.AlignmentResult, len(cands))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, base := range cands {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = Run(s1, s2, base, stats)
			zap.L().Debug("align: candidate complete",
				zap.Float64("base_distance", base),
				zap.Int("aligned", results[i].AlignedCount),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "align: search")
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.AlignedCount > best.AlignedCount {
			best = r
		}
	}

	zap.L().Debug("align: search complete",
		zap.Float64s("candidates", cands),
		zap.Float64("base_distance", best.BaseDistance),
		zap.Int("aligned", best.AlignedCount),
	)
	return best, nil
}
