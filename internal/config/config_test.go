package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
postgres:
  host: pg
  port: 5432
  user: postgres
  dbname: postgres
timescale:
  host: ts
  port: 5432
  user: postgres
  dbname: postgres
mongo:
  uri: mongodb://mongo:27017
elasticsearch:
  addresses:
    - http://es:9200
cassandra:
  hosts:
    - cassandra
redis:
  addr: redis:6379
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Server.WorkerCount)
	assert.Equal(t, 100, cfg.Server.BatchSize)
	assert.Equal(t, "mydatabase", cfg.Mongo.Database)
	assert.Equal(t, "sensors", cfg.Mongo.Collection)
	assert.Equal(t, "sensor-data", cfg.Kafka.Topic)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
}

func TestLoadRejectsMissingStores(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: \"9000\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres host is required")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSNHelpers(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t,
		"host=pg port=5432 user=postgres password= dbname=postgres sslmode=disable",
		cfg.PostgresDSN())
	assert.Equal(t,
		"host=ts port=5432 user=postgres password= dbname=postgres sslmode=disable",
		cfg.TimescaleDSN())
}
