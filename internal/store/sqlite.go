package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/weldalign/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	source1       TEXT NOT NULL,
	source2       TEXT NOT NULL,
	base_distance REAL NOT NULL,
	summary       TEXT NOT NULL,
	stats         TEXT NOT NULL,
	tolerances    TEXT NOT NULL,
	matches       TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_source1 ON runs(source1);
CREATE INDEX IF NOT EXISTS idx_runs_source2 ON runs(source2);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)

	cols, err := marshalRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: save run")
	}
	matchesJSON, err := json.Marshal(run.Matches)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal matches")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source1, source2, base_distance, summary, stats, tolerances, matches, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source1, run.Source2, run.BaseDistance,
		string(cols.summary), string(cols.stats), string(cols.tolerances), string(matchesJSON),
		run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source1, source2, base_distance, summary, stats, tolerances, matches, created_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row, true)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source1, source2, base_distance, summary, stats, tolerances, NULL, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND (source1 = ? OR source2 = ?)`
		args = append(args, filter.Source, filter.Source)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable, withMatches bool) (*model.Run, error) {
	var r model.Run
	var summary, stats, tolerances string
	var matches sql.NullString
	var created time.Time

	err := row.Scan(&r.ID, &r.Source1, &r.Source2, &r.BaseDistance, &summary, &stats, &tolerances, &matches, &created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.CreatedAt = created.UTC()

	cols := runColumns{summary: []byte(summary), stats: []byte(stats), tolerances: []byte(tolerances)}
	if err := cols.unmarshal(&r); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if withMatches && matches.Valid {
		if err := json.Unmarshal([]byte(matches.String), &r.Matches); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal matches")
		}
	}
	return &r, nil
}

// runColumns holds the JSON-encoded columns shared by both backends.
type runColumns struct {
	summary, stats, tolerances []byte
}

func marshalRun(run *model.Run) (runColumns, error) {
	var c runColumns
	var err error
	if c.summary, err = json.Marshal(run.Summary); err != nil {
		return c, eris.Wrap(err, "marshal summary")
	}
	if c.stats, err = json.Marshal(run.Stats); err != nil {
		return c, eris.Wrap(err, "marshal stats")
	}
	if c.tolerances, err = json.Marshal(run.Tolerances); err != nil {
		return c, eris.Wrap(err, "marshal tolerances")
	}
	return c, nil
}

func (c runColumns) unmarshal(r *model.Run) error {
	if err := json.Unmarshal(c.summary, &r.Summary); err != nil {
		return eris.Wrap(err, "unmarshal summary")
	}
	if err := json.Unmarshal(c.stats, &r.Stats); err != nil {
		return eris.Wrap(err, "unmarshal stats")
	}
	if err := json.Unmarshal(c.tolerances, &r.Tolerances); err != nil {
		return eris.Wrap(err, "unmarshal tolerances")
	}
	return nil
}
