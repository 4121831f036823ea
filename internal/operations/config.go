package operations

import (
	"time"
)

// Config represents the run execution configuration
type Config struct {
	// Step-specific timeouts
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`

	// Retry configuration for steps
	RetryConfig RetryConfig `json:"retry_config"`
}

// NewConfig returns the default run configuration
func NewConfig() *Config {
	return &Config{
		StageTimeouts: map[string]time.Duration{
			StepIDAcquisition:   DefaultAcquisitionTimeout,
			StepIDPreprocessing: DefaultPreprocessingTimeout,
			StepIDSplit:         DefaultSplitTimeout,
			StepIDTraining:      DefaultTrainingTimeout,
			StepIDReporting:     DefaultReportingTimeout,
		},
		RetryConfig: NewRetryConfig(),
	}
}

// GetStageTimeout returns the timeout for a specific Step
func (c *Config) GetStageTimeout(stageID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stageID]; ok {
		return timeout
	}
	return DefaultStageTimeout
}

// SetStageTimeout sets the timeout for a specific Step
func (c *Config) SetStageTimeout(stageID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stageID] = timeout
}

// ConfigBuilder provides a fluent interface for building run configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithStageTimeout sets the timeout for a Step
func (b *ConfigBuilder) WithStageTimeout(stageID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStageTimeout(stageID, timeout)
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
