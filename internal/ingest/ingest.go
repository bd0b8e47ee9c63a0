// Package ingest reads inspection spreadsheets and normalizes them into an
// anchor sequence and a defect list.
package ingest

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrMissingColumn is returned when a required column cannot be found.
	ErrMissingColumn = eris.New("ingest: missing column")
	// ErrNoAnchors is returned when a source yields no girth welds.
	ErrNoAnchors = eris.New("ingest: no anchors found")
)

// Options configures how one source file is read.
type Options struct {
	Sheet   string // sheet name or 0-based index; empty selects the first sheet
	Charset string // CSV only, e.g. "gbk"
	Aliases Aliases
}

// ReadFile reads all rows of a .xlsx or .csv file.
func ReadFile(path string, opts Options) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheetOptions(opts.Sheet))
	case ".csv", ".txt":
		return ReadCSVFile(path, CSVOptions{Charset: opts.Charset})
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

// Load reads a source file and normalizes it. source is 1 or 2.
func Load(path string, source int, opts Options) (*Source, error) {
	rows, err := ReadFile(path, opts)
	if err != nil {
		return nil, err
	}

	h := FindHeader(rows)
	if h < 0 {
		return nil, eris.Wrapf(ErrMissingColumn, "ingest: %s has no header row", filepath.Base(path))
	}

	aliases := opts.Aliases
	if aliases.empty() {
		aliases = DefaultAliases()
	}
	cols, err := DiscoverColumns(rows[h], aliases)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: %s", filepath.Base(path))
	}

	src, err := Normalize(source, rows[h+1:], cols)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: %s", filepath.Base(path))
	}
	src.Name = filepath.Base(path)

	zap.L().Info("ingest: source loaded",
		zap.String("file", src.Name),
		zap.Int("source", source),
		zap.Int("anchors", src.Sequence.Len()),
		zap.Int("defects", len(src.Defects)),
		zap.Int("dropped", src.Dropped),
	)
	return src, nil
}

func sheetOptions(sheet string) XLSXOptions {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return XLSXOptions{}
	}
	if idx, err := strconv.Atoi(sheet); err == nil {
		return XLSXOptions{SheetIndex: idx}
	}
	return XLSXOptions{SheetName: sheet}
}
