package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("ORDER_STATUS_POLICY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, StatusPolicyPermissive, cfg.Orders.StatusPolicy)
	assert.Equal(t, 5, cfg.Aggregation.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Functions.Timeout)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
docstore:
  driver: mongo
  mongo_database: reviews
orders:
  status_policy: strict
functions:
  timeout: 2s
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("DOCSTORE_DRIVER", "")
	t.Setenv("ORDER_STATUS_POLICY", "")
	t.Setenv("FUNCTION_TIMEOUT", "")
	t.Setenv("AGGREGATE_MAX_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.HTTP.Port)
	assert.Equal(t, "mongo", cfg.DocStore.Driver)
	assert.Equal(t, "reviews", cfg.DocStore.MongoDatabase)
	assert.Equal(t, StatusPolicyStrict, cfg.Orders.StatusPolicy)
	assert.Equal(t, 2*time.Second, cfg.Functions.Timeout)
	assert.Equal(t, 5, cfg.Aggregation.MaxAttempts)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ORDER_STATUS_POLICY", "whatever")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ORDER_STATUS_POLICY", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Database.Driver = "postgres"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.DocStore.Driver = "redis"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Aggregation.MaxAttempts = 0
	assert.Error(t, bad.Validate())
}

func TestMySQLDSN(t *testing.T) {
	d := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "diner", Password: "pw", Name: "diner"}
	assert.Equal(t, "diner:pw@tcp(db:3306)/diner?charset=utf8mb4&parseTime=True&loc=UTC", d.MySQLDSN())

	d.UnixSocket = "/cloudsql/proj:region:inst"
	assert.Equal(t, "diner:pw@unix(/cloudsql/proj:region:inst)/diner?charset=utf8mb4&parseTime=True&loc=UTC", d.MySQLDSN())

	d.DSN = "explicit"
	assert.Equal(t, "explicit", d.MySQLDSN())
}
