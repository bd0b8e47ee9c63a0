package ingest

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/weldalign/internal/model"
)

// lookahead is how many rows below a defect are searched for an anchor when
// none precedes it.
const lookahead = 10

// Source is one normalized inspection record.
type Source struct {
	Name     string
	Sequence model.AnchorSequence
	Defects  []model.Defect
	Dropped  int // rows that looked like anchors or defects but could not be placed
}

type parsedRow struct {
	id       string
	pos      float64
	hasPos   bool
	anchor   bool
	defect   bool
	rejected bool
}

// Normalize classifies data rows (the rows below the header) into anchors
// and defects. source is 1 or 2 and is stamped on every defect.
func Normalize(source int, rows [][]string, cols Columns) (*Source, error) {
	tagged := hasAnchorTag(rows, cols)
	parsed := make([]parsedRow, len(rows))

	for i, row := range rows {
		p := &parsed[i]
		p.id = cell(row, cols.WeldID)
		if v := cell(row, cols.Distance); v != "" {
			if f, err := parseFloat(v); err == nil {
				p.pos, p.hasPos = f, true
			}
		}
		noMagnitude := cell(row, cols.Depth) == "" && cell(row, cols.Length) == "" && cell(row, cols.Width) == ""

		var looksAnchor bool
		if tagged {
			looksAnchor = isAnchorTag(cell(row, cols.FeatureType), cols.AnchorTags)
		} else {
			looksAnchor = p.id != "" && cell(row, cols.Distance) != "" && noMagnitude
		}

		switch {
		case looksAnchor && p.hasPos:
			p.anchor = true
		case looksAnchor:
			p.rejected = true
		case !noMagnitude:
			p.defect = true
		}
	}

	src := &Source{}
	var anchors []model.Anchor
	nextSynthetic := 10
	for i := range parsed {
		p := &parsed[i]
		if p.rejected {
			src.Dropped++
			continue
		}
		if !p.anchor {
			continue
		}
		a := model.Anchor{ID: formatID(p.id), Position: p.pos, Row: i}
		if a.ID == "" {
			a.ID = strconv.Itoa(nextSynthetic)
			a.Synthetic = true
			nextSynthetic += 10
		}
		p.id = a.ID
		anchors = append(anchors, a)
	}
	if len(anchors) == 0 {
		return nil, ErrNoAnchors
	}
	slices.SortStableFunc(anchors, func(a, b model.Anchor) int {
		switch {
		case a.Position < b.Position:
			return -1
		case a.Position > b.Position:
			return 1
		}
		return 0
	})
	src.Sequence = model.NewAnchorSequence(anchors)

	for i, row := range rows {
		if !parsed[i].defect {
			continue
		}
		ref := attachAnchor(parsed, i)
		if ref < 0 {
			src.Dropped++
			continue
		}
		src.Defects = append(src.Defects, buildDefect(source, i, row, &parsed[i], &parsed[ref], cols))
	}
	return src, nil
}

func buildDefect(source, idx int, row []string, p, anchor *parsedRow, cols Columns) model.Defect {
	d := model.Defect{
		Source:       source,
		WeldID:       anchor.id,
		Position:     anchor.pos,
		ClockDegrees: ClockToDegrees(cell(row, cols.Clock)),
		Depth:        floatOrZero(cell(row, cols.Depth)),
		Length:       floatOrZero(cell(row, cols.Length)),
		Width:        floatOrZero(cell(row, cols.Width)),
		Comment:      cell(row, cols.FeatureType),
		Index:        idx,
	}
	if p.hasPos {
		d.Position = p.pos
		d.DistanceToWeld = model.Round(p.pos-anchor.pos, 3)
	}

	switch ident := cell(row, cols.Identification); {
	case ident != "":
		d.Type = ident
	case d.Comment != "":
		d.Type = ClassifyDefectType(d.Comment)
	}
	return d
}

// attachAnchor returns the row index of the nearest anchor above i, else the
// first anchor within the lookahead below it, else -1.
func attachAnchor(parsed []parsedRow, i int) int {
	for j := i - 1; j >= 0; j-- {
		if parsed[j].anchor {
			return j
		}
	}
	for j := i + 1; j < len(parsed) && j <= i+lookahead; j++ {
		if parsed[j].anchor {
			return j
		}
	}
	return -1
}

func hasAnchorTag(rows [][]string, cols Columns) bool {
	if cols.FeatureType < 0 {
		return false
	}
	for _, row := range rows {
		if isAnchorTag(cell(row, cols.FeatureType), cols.AnchorTags) {
			return true
		}
	}
	return false
}

func isAnchorTag(v string, tags []string) bool {
	v = fold(v)
	if v == "" {
		return false
	}
	return slices.Contains(tags, v)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[idx])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: parse %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("ingest: parse %q: not finite", s)
	}
	return f, nil
}

func floatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0
	}
	return f
}

// formatID renders integral weld numbers without a fractional part and
// keeps any other label as written.
func formatID(s string) string {
	if s == "" {
		return ""
	}
	if f, err := parseFloat(s); err == nil && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
