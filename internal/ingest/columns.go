package ingest

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"
)

// Aliases lists, per field, the header fragments that identify its column.
// Matching is by containment after width and case folding.
type Aliases struct {
	WeldID         []string `yaml:"weld_id"`
	Distance       []string `yaml:"distance"`
	FeatureType    []string `yaml:"feature_type"`
	Identification []string `yaml:"identification"`
	Clock          []string `yaml:"clock"`
	Depth          []string `yaml:"depth"`
	Length         []string `yaml:"length"`
	Width          []string `yaml:"width"`
	// GirthWeld lists the feature-type values that tag a row as an anchor.
	GirthWeld []string `yaml:"girth_weld"`
}

// DefaultAliases covers the Chinese headers of the common pipeline
// inspection report layout plus English equivalents.
func DefaultAliases() Aliases {
	return Aliases{
		WeldID:         []string{"上游环焊缝编号", "upstream weld no", "upstream weld id", "weld number", "weld no", "weld id"},
		Distance:       []string{"绝对距离", "absolute distance", "abs distance", "log distance", "odometer"},
		FeatureType:    []string{"部件/缺陷类型", "feature type", "component/defect type", "event"},
		Identification: []string{"部件/缺陷识别", "identification", "defect class"},
		Clock:          []string{"时钟方位", "clock", "orientation"},
		Depth:          []string{"深度", "depth"},
		Length:         []string{"长度", "length"},
		Width:          []string{"宽度", "width"},
		GirthWeld:      []string{"环焊缝", "girth weld", "girthweld"},
	}
}

// LoadAliases merges the aliases of a YAML file into DefaultAliases.
func LoadAliases(path string) (Aliases, error) {
	a := DefaultAliases()
	if path == "" {
		return a, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return a, eris.Wrap(err, "ingest: read aliases")
	}
	var extra Aliases
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return a, eris.Wrap(err, "ingest: parse aliases")
	}

	a.WeldID = append(a.WeldID, extra.WeldID...)
	a.Distance = append(a.Distance, extra.Distance...)
	a.FeatureType = append(a.FeatureType, extra.FeatureType...)
	a.Identification = append(a.Identification, extra.Identification...)
	a.Clock = append(a.Clock, extra.Clock...)
	a.Depth = append(a.Depth, extra.Depth...)
	a.Length = append(a.Length, extra.Length...)
	a.Width = append(a.Width, extra.Width...)
	a.GirthWeld = append(a.GirthWeld, extra.GirthWeld...)
	return a, nil
}

func (a Aliases) empty() bool {
	return len(a.WeldID)+len(a.Distance)+len(a.FeatureType)+len(a.Identification)+
		len(a.Clock)+len(a.Depth)+len(a.Length)+len(a.Width)+len(a.GirthWeld) == 0
}

// Columns holds the 0-based column index of each field, or -1 when the
// header has no such column.
type Columns struct {
	WeldID         int
	Distance       int
	FeatureType    int
	Identification int
	Clock          int
	Depth          int
	Length         int
	Width          int

	AnchorTags []string // folded GirthWeld aliases
}

// FindHeader returns the index of the first row with at least two non-empty
// cells, or -1.
func FindHeader(rows [][]string) int {
	for i, row := range rows {
		n := 0
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				n++
			}
		}
		if n >= 2 {
			return i
		}
	}
	return -1
}

// DiscoverColumns maps header cells to fields. Each cell is claimed by the
// first field, in declaration order, that one of its aliases matches. Length
// and width prefer a header that names millimetres. Only the distance
// column is required.
func DiscoverColumns(header []string, a Aliases) (Columns, error) {
	cols := Columns{
		WeldID: -1, Distance: -1, FeatureType: -1, Identification: -1,
		Clock: -1, Depth: -1, Length: -1, Width: -1,
	}

	fields := []struct {
		idx     *int
		aliases []string
		mm      bool
	}{
		{&cols.WeldID, a.WeldID, false},
		{&cols.Distance, a.Distance, false},
		{&cols.FeatureType, a.FeatureType, false},
		{&cols.Identification, a.Identification, false},
		{&cols.Clock, a.Clock, false},
		{&cols.Depth, a.Depth, false},
		{&cols.Length, a.Length, true},
		{&cols.Width, a.Width, true},
	}

	for i, raw := range header {
		h := fold(raw)
		if h == "" {
			continue
		}
		for _, f := range fields {
			if !containsAny(h, f.aliases) {
				continue
			}
			switch {
			case *f.idx < 0:
				*f.idx = i
			case f.mm && strings.Contains(h, "mm") && !strings.Contains(fold(header[*f.idx]), "mm"):
				*f.idx = i
			}
			break
		}
	}

	if cols.Distance < 0 {
		return cols, eris.Wrap(ErrMissingColumn, "ingest: absolute distance")
	}

	for _, t := range a.GirthWeld {
		cols.AnchorTags = append(cols.AnchorTags, fold(t))
	}
	return cols, nil
}

// fold normalizes a header or tag: full-width to half-width, then case fold.
func fold(s string) string {
	return cases.Fold().String(width.Fold.String(strings.TrimSpace(s)))
}

func containsAny(h string, aliases []string) bool {
	for _, a := range aliases {
		if a = fold(a); a != "" && strings.Contains(h, a) {
			return true
		}
	}
	return false
}
