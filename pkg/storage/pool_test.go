package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolFor_Defaults(t *testing.T) {
	cfg := poolFor("postgres", "host=db")
	assert.Equal(t, DefaultPoolConfig(), cfg)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 10, cfg.MaxIdleConns)
}

func TestPoolFor_NonPositiveSizesKeepDefaults(t *testing.T) {
	cfg := poolFor("sqlite", "a.db", MaxOpenConns(0), MaxIdleConns(-1))
	assert.Equal(t, DefaultMaxOpenConns, cfg.MaxOpenConns)
	assert.Equal(t, DefaultMaxIdleConns, cfg.MaxIdleConns)
}

func TestPoolFor_IdleNeverExceedsOpen(t *testing.T) {
	cfg := poolFor("sqlite", "a.db", MaxOpenConns(1))
	assert.Equal(t, 1, cfg.MaxOpenConns)
	assert.Equal(t, 1, cfg.MaxIdleConns)
}

func TestPoolFor_InMemorySQLiteSingleConnection(t *testing.T) {
	for _, dsn := range []string{":memory:", "file:test?mode=memory&cache=shared"} {
		cfg := poolFor("sqlite", dsn, MaxOpenConns(8), ConnMaxLifetime(time.Minute))
		assert.Equal(t, 1, cfg.MaxOpenConns, dsn)
		assert.Equal(t, 1, cfg.MaxIdleConns, dsn)
		assert.Zero(t, cfg.ConnMaxLifetime, dsn)
		assert.Zero(t, cfg.ConnMaxIdleTime, dsn)
	}

	// Postgres DSNs are never treated as in-memory.
	assert.Equal(t, 8, poolFor("postgres", "mode=memory", MaxOpenConns(8)).MaxOpenConns)
}

func TestOpen_SQLiteAppliesPool(t *testing.T) {
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "open.db"), MaxOpenConns(3), MaxIdleConns(1))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_InMemorySQLite(t *testing.T) {
	db, err := Open("sqlite", ":memory:", MaxOpenConns(10))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	s := NewGormStorage(db)
	require.NoError(t, s.Migrate(t.Context()))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "dsn")
	assert.Error(t, err)
}

func TestAppendParam(t *testing.T) {
	assert.Equal(t, "a.db?x=1", appendParam("a.db", "x=1"))
	assert.Equal(t, "a.db?y=2&x=1", appendParam("a.db?y=2", "x=1"))
}
