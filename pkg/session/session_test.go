package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:8983/solr", cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultFetchSize, cfg.FetchSize)
	require.NotNil(t, cfg.CommitWrites)
	assert.True(t, *cfg.CommitWrites)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solr.yaml")
	data := `
base_url: http://solr.internal:8983/solr
username: writer
password: hunter2
timeout: 10s
batch_size: 250
commit_writes: false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://solr.internal:8983/solr", cfg.BaseURL)
	assert.Equal(t, "writer", cfg.Username)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 250, cfg.BatchSize)
	// Unset values pick up defaults
	assert.Equal(t, DefaultFetchSize, cfg.FetchSize)
	require.NotNil(t, cfg.CommitWrites)
	assert.False(t, *cfg.CommitWrites)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNewSessionDefaultsNilConfig(t *testing.T) {
	sess, err := NewSession(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, sess.Config().BatchSize)
	assert.True(t, sess.CommitWrites())
}

func TestNewSessionNormalizes(t *testing.T) {
	sess, err := NewSession(&Config{BaseURL: "http://localhost:8983/solr", BatchSize: -1})
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, sess.Config().BatchSize)
}

func TestCommitWrites(t *testing.T) {
	off := false
	sess, err := NewSession(&Config{BaseURL: "http://localhost:8983/solr", CommitWrites: &off})
	require.NoError(t, err)
	assert.False(t, sess.CommitWrites())
}

func TestConnect(t *testing.T) {
	sess, err := NewSession(DefaultConfig())
	require.NoError(t, err)

	client, err := sess.Connect()
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())
}
