package utils

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvFallback(t *testing.T) {
	t.Setenv("MPID_TEST_VALUE", "")
	assert.Equal(t, "fallback", GetEnv("MPID_TEST_VALUE", "fallback"))
	assert.Equal(t, "", GetEnv("MPID_TEST_VALUE"))

	t.Setenv("MPID_TEST_VALUE", "  set ")
	assert.Equal(t, "set", GetEnv("MPID_TEST_VALUE", "fallback"))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestSetLogLevel(t *testing.T) {
	SetLogLevel("error")
	defer SetLogLevel("info")

	assert.False(t, GetLogger().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, GetLogger().Enabled(context.Background(), slog.LevelError))
}

func TestCreateFolderNested(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateFolder(dir))
	require.NoError(t, CreateFolder(dir))
	assert.DirExists(t, dir)
}

func TestGenerateUniqueIDPrefix(t *testing.T) {
	t.Parallel()

	id := GenerateUniqueID()
	assert.Regexp(t, `^an_[0-9a-f]+$`, id)
}

func TestGenerateUniqueIDIsDistinct(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := GenerateUniqueID()
		_, dup := seen[id]
		require.False(t, dup, id)
		seen[id] = struct{}{}
	}
}
