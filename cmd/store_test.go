package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/config"
)

func TestInitStore_None(t *testing.T) {
	st, err := initStore(context.Background(), config.StoreConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = requireStore(context.Background(), config.StoreConfig{Driver: "none"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestInitStore_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "runs.db")

	st, err := initStore(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: dsn})
	require.NoError(t, err)
	require.NotNil(t, st)
	t.Cleanup(func() { st.Close() })

	run, err := st.CreateRun(context.Background(), "a.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.FileExists(t, dsn)
}

func TestInitStore_Unsupported(t *testing.T) {
	_, err := initStore(context.Background(), config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}
