package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var digits = regexp.MustCompile(`\d+`)

// ClockToDegrees converts a clock position such as "12:00" or "06:30:00" to
// degrees, with 12 o'clock at 0 and increasing clockwise. Spreadsheet time
// values stored as a day fraction in [0,1) are also accepted. Anything
// unparseable is 0.
func ClockToDegrees(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f >= 0 && f < 1 {
			return math.Mod(math.Mod(f*24, 12)*30, 360)
		}
		return 0
	}

	parts := digits.FindAllString(s, 3)
	if len(parts) < 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	var sec int
	if len(parts) > 2 {
		sec, _ = strconv.Atoi(parts[2])
	}
	minutes := float64(m) + float64(sec)/60
	return math.Mod(float64(h%12)*30+minutes*0.5, 360)
}
