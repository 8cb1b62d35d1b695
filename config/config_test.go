package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MemoryDriver(t *testing.T) {
	t.Setenv("APP_ENV_FILE", "")
	t.Setenv("RECORDS_STORE_DRIVER", "MEMORY")
	t.Setenv("RECORDS_MAX_BATCH_SIZE", "50")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("DB_QUERY_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Records.StoreDriver)
	assert.Equal(t, 50, cfg.Records.MaxBatchSize)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_PostgresNeedsURL(t *testing.T) {
	t.Setenv("APP_ENV_FILE", "")
	t.Setenv("RECORDS_STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_DatabaseURLFromParts(t *testing.T) {
	t.Setenv("APP_ENV_FILE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "records")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://records:secret@db:5432/records?sslmode=disable", cfg.Database.URL)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RECORDS_TEST_DOTENV_VALUE=from-file\n"), 0o600))
	t.Setenv("APP_ENV_FILE", path)
	t.Setenv("RECORDS_STORE_DRIVER", "memory")
	t.Cleanup(func() { _ = os.Unsetenv("RECORDS_TEST_DOTENV_VALUE") })

	_, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", os.Getenv("RECORDS_TEST_DOTENV_VALUE"))
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	t.Setenv("APP_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("RECORDS_STORE_DRIVER", "memory")

	_, err := Load()
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:           AppConfig{Environment: EnvDevelopment},
			Database:      DatabaseConfig{URL: "postgres://localhost/records", ConnectAttempts: 1},
			HTTP:          HTTPConfig{Port: 8080},
			Records:       RecordsConfig{StoreDriver: DriverPostgres, MaxBatchSize: 10, CacheTTL: time.Minute},
			Observability: ObservabilityConfig{LogFormat: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Records.StoreDriver = "sqlite" }, "RECORDS_STORE_DRIVER"},
		{"memory in production", func(c *Config) {
			c.Records.StoreDriver = DriverMemory
			c.App.Environment = EnvProduction
		}, "not allowed in production"},
		{"zero batch size", func(c *Config) { c.Records.MaxBatchSize = 0 }, "RECORDS_MAX_BATCH_SIZE"},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, "HTTP_PORT"},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
