package report

import (
	"image/color"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sells-group/weldalign/internal/model"
)

// ErrNothingToPlot is returned when a result has no paired anchors.
var ErrNothingToPlot = eris.New("report: no paired anchors to plot")

var (
	source1Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	source2Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// PlotDeltas renders the deltas of every paired row against the source-1
// position as a PNG (or any format gonum/plot infers from the extension).
func PlotDeltas(path string, res *model.AlignmentResult) error {
	if res == nil || res.AlignedCount == 0 {
		return ErrNothingToPlot
	}

	pts1 := make(plotter.XYs, 0, res.AlignedCount)
	pts2 := make(plotter.XYs, 0, res.AlignedCount)
	for _, p := range res.Pairs {
		if !p.Paired() {
			continue
		}
		pts1 = append(pts1, plotter.XY{X: p.Anchor1.Position, Y: p.Delta1})
		pts2 = append(pts2, plotter.XY{X: p.Anchor1.Position, Y: p.Delta2})
	}

	p := plot.New()
	p.Title.Text = "Aligned Weld Spacing"
	p.X.Label.Text = "Source 1 position (m)"
	p.Y.Label.Text = "Delta (m)"

	for _, s := range []struct {
		label string
		pts   plotter.XYs
		color color.Color
	}{
		{"Source 1", pts1, source1Color},
		{"Source 2", pts2, source2Color},
	} {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return eris.Wrapf(err, "report: %s line", s.label)
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return eris.Wrap(err, "report: save plot")
	}
	return nil
}
