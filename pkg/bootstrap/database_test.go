package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyftr/internal/config"
	"lyftr/internal/logger"
	"lyftr/pkg/retry"
)

func TestDatabaseConnector_InitSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "sqlite:///" + path}}

	dc := NewDatabaseConnector(cfg, logger.NopLogger())
	db, err := dc.InitSQLite(context.Background())
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
	assert.Empty(t, dc.ShutdownDatabases(db))
}

func TestDatabaseConnector_InitSQLiteBadURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "postgres://localhost/db"}}

	_, err := NewDatabaseConnector(cfg, logger.NopLogger()).InitSQLite(context.Background())
	assert.Error(t, err)
}

func TestDatabaseConnector_InitSQLiteGivesUp(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := &config.Config{Database: config.DatabaseConfig{URL: "sqlite:///" + filepath.Join(blocker, "app.db")}}
	dc := NewDatabaseConnector(cfg, logger.NopLogger())
	dc.Policy = retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}

	_, err := dc.InitSQLite(context.Background())
	assert.Error(t, err)
}

func TestBase_InitBrokerDisabled(t *testing.T) {
	base := NewBase(&config.Config{}, logger.NopLogger())
	require.NoError(t, base.InitBroker())
	assert.Nil(t, base.Producer)
	assert.NoError(t, base.Shutdown(context.Background(), nil))
}
