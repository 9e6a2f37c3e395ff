package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microplastic-id/models"
)

func TestJSONFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	store, err := NewJSONFileStore(path)
	require.NoError(t, err)

	records, err := store.ListAnalyses(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.StoreAnalysis(ctx, &models.AnalysisRecord{Timestamp: base, Source: "a.csv", Kind: "csv", Match: "first"}))
	require.NoError(t, store.StoreAnalysis(ctx, &models.AnalysisRecord{Timestamp: base.Add(time.Hour), Source: "b.csv", Kind: "csv", Match: "second"}))
	require.NoError(t, store.StoreAnalysis(ctx, &models.AnalysisRecord{Timestamp: base, Source: "c.csv", Kind: "csv", Match: "third"}))

	reopened, err := NewJSONFileStore(path)
	require.NoError(t, err)
	records, err = reopened.ListAnalyses(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "second", records[0].Match)
	assert.Equal(t, "third", records[1].Match)
	assert.Equal(t, "first", records[2].Match)
	assert.Equal(t, []float64{}, records[2].Peaks)

	records, err = reopened.ListAnalyses(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestJSONFileStoreRejectsDuplicateID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewJSONFileStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	require.NoError(t, store.StoreAnalysis(ctx, &models.AnalysisRecord{ID: "fixed", Source: "a", Kind: "csv", Match: "x"}))
	assert.Error(t, store.StoreAnalysis(ctx, &models.AnalysisRecord{ID: "fixed", Source: "b", Kind: "csv", Match: "y"}))
}
