package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv makes sure no SALESDASH_* variable from the host leaks into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SALESDASH_CONFIG", "SALESDASH_SERVER_PORT", "SALESDASH_LOGGING_LEVEL",
		"SALESDASH_PIPELINE_SCALE_BEFORE_SPLIT", "SALESDASH_TRAINING_WORKERS",
		"SALESDASH_DATA_URL_TEMPLATE", "SALESDASH_WEBSOCKET_ALLOWED_ORIGINS",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DefaultTrainFileID, cfg.Data.TrainFileID)
				assert.Equal(t, DefaultStoreFileID, cfg.Data.StoreFileID)
				assert.True(t, cfg.Pipeline.ScaleBeforeSplit)
				assert.Equal(t, 0.2, cfg.Pipeline.TestSize)
				assert.Equal(t, int64(42), cfg.Pipeline.Seed)
				assert.Equal(t, 64, cfg.Training.BatchSize)
			},
		},
		{
			name: "env overrides defaults",
			env: map[string]string{
				"SALESDASH_SERVER_PORT":                 "9090",
				"SALESDASH_PIPELINE_SCALE_BEFORE_SPLIT": "false",
				"SALESDASH_WEBSOCKET_ALLOWED_ORIGINS":   "http://a.test,http://b.test",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.False(t, cfg.Pipeline.ScaleBeforeSplit)
				assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.WebSocket.AllowedOrigins)
			},
		},
		{
			name: "file overrides defaults and env overrides file",
			file: "server:\n  port: 7070\nlogging:\n  level: debug\ntraining:\n  workers: 3\n",
			env: map[string]string{
				"SALESDASH_TRAINING_WORKERS": "2",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, 2, cfg.Training.Workers)
				// untouched sections keep their defaults
				assert.Equal(t, DefaultURLTemplate, cfg.Data.URLTemplate)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"SALESDASH_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "url template without placeholder",
			env:     map[string]string{"SALESDASH_DATA_URL_TEMPLATE": "https://example.com/file"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0644))
				t.Setenv("SALESDASH_CONFIG", path)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestValidateNormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "console", cfg.Logging.Output)
}

func TestResolvePathsWithBaseDir(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.BaseDir = base

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "data", "downloads", "train.csv"), paths.TrainCSV())
	assert.Equal(t, filepath.Join(base, "data", "downloads", "store.csv"), paths.StoreCSV())
	assert.Equal(t, filepath.Join(base, "data", "reports", "Preprocessed_sales_data.csv"), paths.PreprocessedCSV())
}

func TestEnsureDirectories(t *testing.T) {
	paths := NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.DataDir, paths.DownloadsDir, paths.ReportsDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.True(t, FileExists(paths.DownloadsDir))
	assert.False(t, FileExists(filepath.Join(paths.DownloadsDir, "missing.csv")))
}

func TestAddr(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9000
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
}
