package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microplastic-id/config"
	"microplastic-id/matcher"
)

func TestLoadCatalogDefaultsToBuiltIn(t *testing.T) {
	t.Parallel()

	catalog, err := LoadCatalog(context.Background(), config.Default())
	require.NoError(t, err)
	assert.Equal(t, matcher.DefaultCatalog().Len(), catalog.Len())
}

func TestLoadCatalogFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.json")
	custom := matcher.NewCatalog(matcher.DefaultCatalog().Materials()[:2])
	require.NoError(t, matcher.SaveCatalogFile(path, custom))

	cfg := config.Default()
	cfg.Matching.CatalogPath = path
	catalog, err := LoadCatalog(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
}

func TestLoadClassifierFallsBackToCatalog(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Classifier.ModelPath = filepath.Join(t.TempDir(), "missing.json")

	classifier, err := LoadClassifier(context.Background(), cfg, matcher.DefaultCatalog())
	require.NoError(t, err)
	assert.Equal(t, 6, classifier.Stats().PrototypeCount)

	require.NoError(t, classifier.SavePrototypesToFile())
	_, err = os.Stat(cfg.Classifier.ModelPath)
	assert.NoError(t, err)
}

func TestLoadClassifierReplacesEmptyModel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prototypes.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	cfg := config.Default()
	cfg.Classifier.ModelPath = path
	classifier, err := LoadClassifier(context.Background(), cfg, matcher.DefaultCatalog())
	require.NoError(t, err)
	assert.Equal(t, 6, classifier.Stats().PrototypeCount)
}
