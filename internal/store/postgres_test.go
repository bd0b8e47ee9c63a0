package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/weldalign/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runRowColumns = []string{"id", "source1", "source2", "base_distance", "summary", "stats", "tolerances", "created_at"}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun()
	run.ID = "run-1"

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(append([]any{"run-1", "a.xlsx", "b.xlsx", 10.0}, anyArgs(4)...)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"defect_matches"}, matchColumns).WillReturnResult(2)
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_AssignsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := &model.Run{Source1: "a.csv", Source2: "b.csv"}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_CopyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"defect_matches"}, matchColumns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := s.SaveRun(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy matches")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, source1, source2, base_distance, summary, stats, tolerances, created_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runRowColumns).AddRow(
			"run-1", "a.xlsx", "b.xlsx", 10.0,
			[]byte(`{"aligned_anchors":4,"total_matched":1}`),
			[]byte(`{"mean":10.5}`),
			[]byte(`{"distance":1,"clock_position":45,"length":10,"width":10,"depth":2,"min_confidence":0.6}`),
			created,
		))
	mock.ExpectQuery(`FROM defect_matches WHERE run_id = \$1 ORDER BY seq`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"match_type", "confidence", "explanation", "defect1", "defect2"}).
			AddRow("weld-anchored", 0.925, "distance good; clock good", []byte(`{"weld_id":"10","source":1}`), []byte(`{"weld_id":"1","source":2}`)).
			AddRow("unmatched-source2", 0.0, "aligned weld, no corresponding defect", []byte(nil), []byte(`{"weld_id":"2","source":2}`)))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "a.xlsx", run.Source1)
	assert.Equal(t, 4, run.Summary.AlignedAnchors)
	assert.InDelta(t, 10.5, run.Stats.Mean, 1e-9)
	assert.Equal(t, model.DefaultTolerances(), run.Tolerances)
	assert.True(t, created.Equal(run.CreatedAt))
	require.Len(t, run.Matches, 2)
	assert.Equal(t, model.MatchWeldAnchored, run.Matches[0].Type)
	assert.Equal(t, "10", run.Matches[0].Defect1.WeldID)
	assert.Nil(t, run.Matches[1].Defect1)
	assert.Equal(t, "2", run.Matches[1].Defect2.WeldID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`AND \(source1 = \$1 OR source2 = \$1\) AND created_at >= \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("a.xlsx", since, 5, 10).
		WillReturnRows(pgxmock.NewRows(runRowColumns).AddRow(
			"run-1", "a.xlsx", "b.xlsx", 12.0,
			[]byte(`{}`), []byte(`{}`), []byte(`{}`), since,
		))

	runs, err := s.ListRuns(context.Background(), RunFilter{Source: "a.xlsx", Since: since, Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.InDelta(t, 12.0, runs[0].BaseDistance, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE true ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(runRowColumns))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS defect_matches`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PingError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectPing().WillReturnError(fmt.Errorf("connection refused"))
	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: ping")
	assert.NoError(t, mock.ExpectationsWereMet())
}
