package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dining-cli/internal/dbscan"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.SaveRun(ctx, sampleRun("run-1", created)))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "archive", got.Source)
	assert.Equal(t, 120, got.RecordCount)
	assert.Equal(t, 40, got.EstablishmentCount)
	assert.JSONEq(t, `{"radius_km":1}`, string(got.Config))
	assert.True(t, created.Equal(got.CreatedAt))

	require.Len(t, got.Metrics, 2)
	planar, ok := got.Metric(dbscan.Planar)
	require.True(t, ok)
	assert.Equal(t, 2, planar.Stats.Clusters)
	require.Len(t, planar.Summaries, 2)
	assert.Equal(t, "red", string(planar.Summaries[1].Color))
}

func TestSQLite_GetRunNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_DuplicateRunID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, sampleRun("dup", time.Now())))
	assert.Error(t, st.SaveRun(ctx, sampleRun("dup", time.Now())))
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		run := sampleRun(id, base.Add(time.Duration(i)*time.Hour))
		if id == "c" {
			run.SourceKey = "remote|x"
		}
		require.NoError(t, st.SaveRun(ctx, run))
	}

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID, "newest first")
	assert.Equal(t, "a", runs[2].ID)

	runs, err = st.ListRuns(ctx, RunFilter{SourceKey: "remote|x"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
}
