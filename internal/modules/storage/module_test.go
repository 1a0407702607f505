package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trend_bot/internal/modules/config"
	"trend_bot/internal/store/memory"
	"trend_bot/internal/store/sqlite"
)

func TestOpen(t *testing.T) {
	cfg := config.Default()

	cfg.DB.Driver = "memory"
	st, err := Open(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, st)

	cfg.DB.Driver = "sqlite"
	cfg.DB.SQLitePath = filepath.Join(t.TempDir(), "signals.db")
	st, err = Open(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, st)
	require.NoError(t, st.Close())

	cfg.DB.Driver = "mongo"
	_, err = Open(context.Background(), &cfg, zap.NewNop())
	require.Error(t, err)
}
