package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/weldalign/internal/db"
	"github.com/sells-group/weldalign/internal/model"
)

// PostgresStore implements Store using pgxpool. Defect matches live in
// their own table and are written with COPY.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const matchesTable = "defect_matches"

var matchColumns = []string{"run_id", "seq", "match_type", "confidence", "explanation", "defect1", "defect2"}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":  `INSERT INTO runs (id, source1, source2, base_distance, summary, stats, tolerances, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_run":     `SELECT id, source1, source2, base_distance, summary, stats, tolerances, created_at FROM runs WHERE id = $1`,
	"get_matches": `SELECT match_type, confidence, explanation, defect1, defect2 FROM defect_matches WHERE run_id = $1 ORDER BY seq`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// Tables may not exist before the first Migrate.
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
					continue
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source1       TEXT NOT NULL,
	source2       TEXT NOT NULL,
	base_distance DOUBLE PRECISION NOT NULL,
	summary       JSONB NOT NULL,
	stats         JSONB NOT NULL,
	tolerances    JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS defect_matches (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	match_type  TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	explanation TEXT NOT NULL,
	defect1     JSONB,
	defect2     JSONB,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_sources ON runs(source1, source2);
CREATE INDEX IF NOT EXISTS idx_defect_matches_type ON defect_matches(match_type);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)

	cols, err := marshalRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: save run")
	}
	rows, err := matchRows(run.ID, run.Matches)
	if err != nil {
		return eris.Wrap(err, "postgres: save run")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, preparedStatements["insert_run"],
		run.ID, run.Source1, run.Source2, run.BaseDistance,
		cols.summary, cols.stats, cols.tolerances, run.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", run.ID)
	}

	if _, err := db.CopyFrom(ctx, tx, matchesTable, matchColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy matches for %s", run.ID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var cols runColumns

	err := s.pool.QueryRow(ctx, preparedStatements["get_run"], runID).
		Scan(&r.ID, &r.Source1, &r.Source2, &r.BaseDistance, &cols.summary, &cols.stats, &cols.tolerances, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if err := cols.unmarshal(&r); err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	rows, err := s.pool.Query(ctx, preparedStatements["get_matches"], runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get matches %s", runID)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.DefectMatch
		var mt string
		var d1, d2 []byte
		if err := rows.Scan(&mt, &m.Confidence, &m.Explanation, &d1, &d2); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match")
		}
		m.Type = model.MatchType(mt)
		if m.Defect1, err = unmarshalDefect(d1); err != nil {
			return nil, err
		}
		if m.Defect2, err = unmarshalDefect(d2); err != nil {
			return nil, err
		}
		r.Matches = append(r.Matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: get matches iterate")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source1, source2, base_distance, summary, stats, tolerances, created_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND (source1 = $%d OR source2 = $%d)`, argIdx, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var cols runColumns
		if err := rows.Scan(&r.ID, &r.Source1, &r.Source2, &r.BaseDistance, &cols.summary, &cols.stats, &cols.tolerances, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := cols.unmarshal(&r); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func matchRows(runID string, matches []model.DefectMatch) ([][]any, error) {
	rows := make([][]any, 0, len(matches))
	for i, m := range matches {
		d1, err := marshalDefect(m.Defect1)
		if err != nil {
			return nil, err
		}
		d2, err := marshalDefect(m.Defect2)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{runID, i, string(m.Type), m.Confidence, m.Explanation, d1, d2})
	}
	return rows, nil
}

func marshalDefect(d *model.Defect) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	return b, eris.Wrap(err, "marshal defect")
}

func unmarshalDefect(b []byte) (*model.Defect, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var d model.Defect
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal defect")
	}
	return &d, nil
}
