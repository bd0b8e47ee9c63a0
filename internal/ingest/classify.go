package ingest

import "strings"

// Defect type classes.
const (
	TypeManufacturing = "manufacturing"
	TypeCorrosion     = "corrosion"
	TypeMechanical    = "mechanical"
	TypeUnknown       = "unknown"
)

// ClassifyDefectType maps a free-text feature comment to a defect class by
// keyword.
func ClassifyDefectType(comment string) string {
	c := strings.ToLower(comment)
	switch {
	case strings.Contains(c, "mfg") || strings.Contains(c, "manufactur") || strings.Contains(c, "制造"):
		return TypeManufacturing
	case strings.Contains(c, "corrosion") || strings.Contains(c, "腐蚀"):
		return TypeCorrosion
	case strings.Contains(c, "mechanical") || strings.Contains(c, "机械"):
		return TypeMechanical
	default:
		return TypeUnknown
	}
}
