package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/fs1-test.db")
	t.Setenv("LOAD_BATCH_SIZE", "25")
	t.Setenv("LOAD_TIMEOUT_MS", "1500")
	t.Setenv("IMAP_SECURE", "off")
	t.Setenv("INGEST_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/fs1-test.db", cfg.DBPath)
	assert.Equal(t, 25, cfg.LoadBatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.LoadTimeout())
	assert.False(t, cfg.IMAPSecure)
	assert.GreaterOrEqual(t, cfg.IngestWorkers, 1)
	assert.Equal(t, 1980, cfg.YearMin)
}

func TestLoadClampsBatchSize(t *testing.T) {
	t.Setenv("LOAD_BATCH_SIZE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.LoadBatchSize)
}

func TestRequire(t *testing.T) {
	var cfg Config
	assert.Error(t, cfg.Require("IMAP_HOST", "  "))
	assert.NoError(t, cfg.Require("IMAP_HOST", "imap.example.test"))
}
