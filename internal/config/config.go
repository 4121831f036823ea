package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "SALESDASH"

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" envconfig:"SERVER"`
	Logging       LoggingConfig       `yaml:"logging" envconfig:"LOGGING"`
	Paths         PathsConfig         `yaml:"paths" envconfig:"PATHS"`
	Data          DataConfig          `yaml:"data" envconfig:"DATA"`
	Pipeline      PipelineConfig      `yaml:"pipeline" envconfig:"PIPELINE"`
	Training      TrainingConfig      `yaml:"training" envconfig:"TRAINING"`
	WebSocket     WebSocketConfig     `yaml:"websocket" envconfig:"WEBSOCKET"`
	Observability ObservabilityConfig `yaml:"observability" envconfig:"OBSERVABILITY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string          `yaml:"host" envconfig:"HOST"`
	Port            int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	RequestTimeout  time.Duration   `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxHeaderBytes  int             `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// OpenBrowser opens the dashboard in the default browser once the server is up
	OpenBrowser bool `yaml:"open_browser" envconfig:"OPEN_BROWSER"`
}

// RateLimitConfig contains rate limiting configuration for run submission
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
	Output string `yaml:"output" envconfig:"OUTPUT"`
	// FilePath defaults to LogFileName inside the logs directory
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration.
// An empty BaseDir means "next to the executable".
type PathsConfig struct {
	BaseDir string `yaml:"base_dir" envconfig:"BASE_DIR"`
}

// DataConfig describes where the two input tables come from
type DataConfig struct {
	TrainFileID     string        `yaml:"train_file_id" envconfig:"TRAIN_FILE_ID"`
	StoreFileID     string        `yaml:"store_file_id" envconfig:"STORE_FILE_ID"`
	URLTemplate     string        `yaml:"url_template" envconfig:"URL_TEMPLATE"`
	DriveAPIKey     string        `yaml:"drive_api_key" envconfig:"DRIVE_API_KEY"`
	DownloadTimeout time.Duration `yaml:"download_timeout" envconfig:"DOWNLOAD_TIMEOUT"`
}

// PipelineConfig controls preprocessing and the train/holdout split
type PipelineConfig struct {
	ScaleBeforeSplit bool    `yaml:"scale_before_split" envconfig:"SCALE_BEFORE_SPLIT"`
	TestSize         float64 `yaml:"test_size" envconfig:"TEST_SIZE"`
	Seed             int64   `yaml:"seed" envconfig:"SEED"`
}

// TrainingConfig controls the job queue and the fit loop
type TrainingConfig struct {
	BatchSize  int           `yaml:"batch_size" envconfig:"BATCH_SIZE"`
	Seed       int64         `yaml:"seed" envconfig:"SEED"`
	Workers    int           `yaml:"workers" envconfig:"WORKERS"`
	QueueSize  int           `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
	RunTimeout time.Duration `yaml:"run_timeout" envconfig:"RUN_TIMEOUT"`
	// Retention is how long finished runs and their reports stay in memory
	Retention time.Duration `yaml:"retention" envconfig:"RETENTION"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// ObservabilityConfig toggles tracing and metrics
type ObservabilityConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration: defaults, then the YAML file (if any),
// then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file
// keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ResolvePaths returns the Paths rooted at Paths.BaseDir, or at the
// executable directory when no base directory is configured.
func (c *Config) ResolvePaths() (*Paths, error) {
	if c.Paths.BaseDir != "" {
		abs, err := filepath.Abs(c.Paths.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve base dir: %w", err)
		}
		return NewPaths(abs), nil
	}
	return GetPaths()
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Data.TrainFileID == "" || c.Data.StoreFileID == "" {
		return fmt.Errorf("both train and store file ids are required")
	}

	if !strings.Contains(c.Data.URLTemplate, "%s") {
		return fmt.Errorf("url template must contain %%s: %q", c.Data.URLTemplate)
	}

	if c.Pipeline.TestSize <= 0 || c.Pipeline.TestSize >= 1 {
		return fmt.Errorf("pipeline test size must be in (0, 1): %v", c.Pipeline.TestSize)
	}

	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("training batch size must be positive")
	}

	if c.Training.Workers <= 0 {
		return fmt.Errorf("training workers must be positive")
	}

	// JSON is the only log format the infrastructure logger emits
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	return nil
}

// getConfigFilePath returns the path to the config file, or "" if none
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	if exe, err := os.Executable(); err == nil {
		locations = append(locations, filepath.Join(filepath.Dir(exe), "config.yaml"))
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    DefaultRunTimeout,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     2,
				Burst:   5,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
		},
		Data: DataConfig{
			TrainFileID:     DefaultTrainFileID,
			StoreFileID:     DefaultStoreFileID,
			URLTemplate:     DefaultURLTemplate,
			DownloadTimeout: DefaultDownloadTimeout,
		},
		Pipeline: PipelineConfig{
			ScaleBeforeSplit: true,
			TestSize:         DefaultTestSize,
			Seed:             DefaultSeed,
		},
		Training: TrainingConfig{
			BatchSize:  DefaultBatchSize,
			Seed:       DefaultSeed,
			Workers:    1,
			QueueSize:  16,
			RunTimeout: DefaultRunTimeout,
			Retention:  DefaultRunRetention,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
		Observability: ObservabilityConfig{
			ServiceName:    "salesdash",
			TracingEnabled: false,
			MetricsEnabled: true,
		},
	}
}
