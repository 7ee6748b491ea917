package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/rohankatakam/docgraph/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NEO4J_URI", "NEO4J_USER", "NEO4J_PASSWORD", "NEO4J_DATABASE", "NEO4J_HTTP_URL", "NEO4J_AUTH",
		"NEO4J_MAX_POOL_SIZE", "NEO4J_TX_TIMEOUT", "LOG_LEVEL", "DLQ_DSN", "DOCGRAPH_NEO4J_URI", "DOCGRAPH_SYNC_BULK",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	path := writeConfig(t, `
neo4j:
  uri: bolt://graph:7687
  password: from-file
spatial:
  layer: places
sync:
  bulk_size: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	assert.Equal(t, "from-file", cfg.Neo4j.Password)
	assert.Equal(t, "places", cfg.Spatial.Layer)
	assert.Equal(t, "lat", cfg.Spatial.Lat)
	assert.Equal(t, 50, cfg.Sync.BulkSize)
	assert.Equal(t, 1000, cfg.Spatial.StampBatchSize)

	// derived from the Bolt credentials
	assert.Equal(t, "neo4j:from-file", cfg.Spatial.Auth)
}

func TestLoad_EnvironmentPrecedence(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	path := writeConfig(t, `
neo4j:
  uri: bolt://graph:7687
  password: from-file
`)
	t.Setenv("DOCGRAPH_SYNC_BULK", "true")
	t.Setenv("NEO4J_URI", "neo4j://cluster:7687")
	t.Setenv("NEO4J_PASSWORD", "from-env")
	t.Setenv("NEO4J_AUTH", "reader:secret")
	t.Setenv("NEO4J_HTTP_URL", "http://graph:7474/db/data")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Sync.Bulk)
	assert.Equal(t, "neo4j://cluster:7687", cfg.Neo4j.URI)
	assert.Equal(t, "from-env", cfg.Neo4j.Password)
	assert.Equal(t, "reader:secret", cfg.Spatial.Auth)
	assert.Equal(t, "http://graph:7474/db/data", cfg.Spatial.HTTPURL)
}

func TestLoad_KeyringBeatsFile(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	km := NewKeyringManager()
	require.NoError(t, km.SetPassword("from-keyring"))
	require.NoError(t, km.SetHTTPAuth("geo:keyring"))
	defer km.Delete(KeyringPasswordItem)
	defer km.Delete(KeyringHTTPAuthItem)

	cfg, err := Load(writeConfig(t, "neo4j:\n  password: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-keyring", cfg.Neo4j.Password)
	assert.Equal(t, "geo:keyring", cfg.Spatial.Auth)
}

func TestLoad_InvalidFile(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	_, err := Load(writeConfig(t, "neo4j: [unclosed"))
	assert.Error(t, err)
}

func TestKeyringManager(t *testing.T) {
	keyring.MockInit()
	km := NewKeyringManager()
	require.True(t, km.IsAvailable())

	got, err := km.GetPassword()
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, km.SetPassword(""))
	require.NoError(t, km.SetPassword("s3cret"))
	got, err = km.GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, km.Delete(KeyringPasswordItem))
	require.NoError(t, km.Delete(KeyringPasswordItem))
	got, err = km.GetPassword()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "ne...et", MaskSecret("neo4j:secret"))
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Neo4j.Password = "s3cret"
	valid.Spatial.Auth = "neo4j:s3cret"

	tests := []struct {
		name       string
		mutate     func(c *Config)
		ctx        ValidationContext
		wantErrors int
	}{
		{name: "valid sync", mutate: func(c *Config) {}, ctx: ValidationContextSync},
		{name: "missing password", mutate: func(c *Config) { c.Neo4j.Password = "" }, ctx: ValidationContextRead, wantErrors: 1},
		{name: "spatial disabled skips http", mutate: func(c *Config) {
			c.Spatial.Enabled = false
			c.Spatial.HTTPURL = ""
		}, ctx: ValidationContextSync},
		{name: "bad http url", mutate: func(c *Config) { c.Spatial.HTTPURL = "not a url" }, ctx: ValidationContextSpatial, wantErrors: 1},
		{name: "auth without colon", mutate: func(c *Config) { c.Spatial.Auth = "token" }, ctx: ValidationContextSpatial, wantErrors: 1},
		{name: "negative rate", mutate: func(c *Config) { c.Sync.RateLimit = -1 }, ctx: ValidationContextSync, wantErrors: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *valid
			tt.mutate(&cfg)
			result := cfg.Validate(tt.ctx)
			assert.Len(t, result.Errors, tt.wantErrors, result.Error())
		})
	}
}

func TestRequire_ReturnsConfigError(t *testing.T) {
	cfg := Default()
	err := cfg.Require(ValidationContextRead)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.GetType(err))
	assert.Contains(t, err.Error(), "NEO4J_PASSWORD")
}

func TestLoad_TransactionTimeout(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	cfg, err := Load(writeConfig(t, "neo4j:\n  tx_timeout: 45s\n"))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Neo4j.TxTimeout)

	t.Setenv("NEO4J_TX_TIMEOUT", "2m")
	cfg, err = Load(writeConfig(t, "neo4j:\n  tx_timeout: 45s\n"))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Neo4j.TxTimeout)
}

func TestSave_RoundTripWithoutSecrets(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	cfg := Default()
	cfg.Neo4j.URI = "bolt://graph:7687"
	cfg.Neo4j.Password = "hunter2"
	cfg.Spatial.Auth = "neo4j:hunter2"
	cfg.Spatial.Layer = "places"
	cfg.Sync.BulkSize = 250

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt://graph:7687", loaded.Neo4j.URI)
	assert.Equal(t, "places", loaded.Spatial.Layer)
	assert.Equal(t, 250, loaded.Sync.BulkSize)
	assert.Empty(t, loaded.Neo4j.Password)
	assert.Empty(t, loaded.Spatial.Auth)
}
