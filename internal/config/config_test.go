package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "color", cfg.Extractor.Provider)
	assert.Equal(t, 10*time.Second, cfg.Extractor.Timeout)
	assert.Equal(t, 5, cfg.Search.DefaultCount)
	assert.False(t, cfg.Index.ServeBeforeReady)
	assert.EqualValues(t, 10<<20, cfg.Upload.MaxBytes)
}

func TestLoad_EnvOverridesSecret(t *testing.T) {
	t.Setenv("EXTRACTOR_API_KEY", "secret-key")
	cfg, err := Load(writeConfig(t, "extractor:\n  provider: remote\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.Extractor.APIKey)
	assert.Equal(t, "remote", cfg.Extractor.Provider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "unknown driver", body: "database:\n  driver: oracle\n", wantErr: "unknown driver"},
		{name: "unknown provider", body: "extractor:\n  provider: magic\n", wantErr: "unknown provider"},
		{name: "bad counts", body: "search:\n  default_count: 10\n  max_count: 5\n", wantErr: "default_count"},
		{name: "bad storage", body: "storage:\n  type: ftp\n", wantErr: "unknown type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "/tmp/x.db"}
	assert.Equal(t, "/tmp/x.db", sqlite.DSN())

	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "fish", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=fish sslmode=disable", pg.DSN())

	pg.URL = "postgres://u:p@db/fish"
	assert.Equal(t, "postgres://u:p@db/fish", pg.DSN())
}
