package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	HTTP          HTTPConfig          `yaml:"http"`
	Audio         AudioConfig         `yaml:"audio"`
	Summary       SummaryConfig       `yaml:"summary"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summarizer    SummarizerConfig    `yaml:"summarizer"`
	Persistence   PersistenceConfig   `yaml:"persistence"`
	Notification  NotificationConfig  `yaml:"notification"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains WebSocket server configuration
type ServerConfig struct {
	Port            int    `yaml:"port"`
	BindAddress     string `yaml:"bind_address"`
	MaxMessageBytes int64  `yaml:"max_message_bytes"`
	WindowQueueSize int    `yaml:"window_queue_size"`
}

// HTTPConfig contains HTTP admin API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AudioConfig contains audio ingestion parameters
type AudioConfig struct {
	SampleRate        int `yaml:"sample_rate"`
	Channels          int `yaml:"channels"`
	BitDepth          int `yaml:"bit_depth"`
	WindowThresholdMs int `yaml:"window_threshold_ms"`
	MaxPendingMs      int `yaml:"max_pending_ms"`
}

// SummaryConfig contains the summary scheduler parameters
type SummaryConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// SummarizerConfig contains summarization provider configuration
type SummarizerConfig struct {
	Provider     string `yaml:"provider"` // http or gemini
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	Model        string `yaml:"model"`
	Timeout      int    `yaml:"timeout"` // seconds
}

// PersistenceConfig contains aggregate archival configuration
type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// NotificationConfig contains mail delivery configuration
type NotificationConfig struct {
	Enabled      bool   `yaml:"enabled"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	From         string `yaml:"from"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in the documented default values before validation.
func (c *Config) applyDefaults() {
	if c.Audio.WindowThresholdMs == 0 {
		c.Audio.WindowThresholdMs = 10000
	}
	if c.Audio.MaxPendingMs == 0 {
		c.Audio.MaxPendingMs = 60000
	}
	if c.Summary.IntervalMs == 0 {
		c.Summary.IntervalMs = 300000
	}
	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 30
	}
	if c.Transcription.MaxConcurrent == 0 {
		c.Transcription.MaxConcurrent = 10
	}
	if c.Summarizer.Timeout == 0 {
		c.Summarizer.Timeout = 60
	}
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = 1 << 20 // 1 MB
	}
	if c.Server.WindowQueueSize == 0 {
		c.Server.WindowQueueSize = 8
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Summary.Validate(); err != nil {
		return fmt.Errorf("summary config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Summarizer.Validate(); err != nil {
		return fmt.Errorf("summarizer config: %w", err)
	}

	if err := c.Persistence.Validate(); err != nil {
		return fmt.Errorf("persistence config: %w", err)
	}

	if err := c.Notification.Validate(); err != nil {
		return fmt.Errorf("notification config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.MaxMessageBytes < 1024 {
		return fmt.Errorf("max_message_bytes must be at least 1024, got %d", s.MaxMessageBytes)
	}

	if s.WindowQueueSize < 1 {
		return fmt.Errorf("window_queue_size must be at least 1, got %d", s.WindowQueueSize)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	validRates := map[int]bool{8000: true, 16000: true, 44100: true, 48000: true}
	if !validRates[a.SampleRate] {
		return fmt.Errorf("sample_rate must be one of [8000, 16000, 44100, 48000], got %d", a.SampleRate)
	}

	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.WindowThresholdMs < 1000 {
		return fmt.Errorf("window_threshold_ms must be at least 1000, got %d", a.WindowThresholdMs)
	}

	if a.MaxPendingMs <= a.WindowThresholdMs {
		return fmt.Errorf("max_pending_ms (%d) must be greater than window_threshold_ms (%d)",
			a.MaxPendingMs, a.WindowThresholdMs)
	}

	return nil
}

// Validate validates summary scheduler configuration
func (s *SummaryConfig) Validate() error {
	if s.IntervalMs < 10000 {
		return fmt.Errorf("interval_ms must be at least 10000, got %d", s.IntervalMs)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates summarizer configuration
func (s *SummarizerConfig) Validate() error {
	switch s.Provider {
	case "http":
		if s.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for http provider")
		}
	case "gemini":
		if s.GeminiAPIKey == "" {
			return fmt.Errorf("gemini_api_key cannot be empty for gemini provider")
		}
	default:
		return fmt.Errorf("provider must be 'http' or 'gemini', got '%s'", s.Provider)
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	return nil
}

// Validate validates persistence configuration
func (p *PersistenceConfig) Validate() error {
	if p.Enabled && p.Dir == "" {
		return fmt.Errorf("dir cannot be empty when persistence is enabled")
	}

	return nil
}

// Validate validates notification configuration
func (n *NotificationConfig) Validate() error {
	if n.Enabled {
		if n.SMTPHost == "" {
			return fmt.Errorf("smtp_host cannot be empty when notification is enabled")
		}
		if n.SMTPPort < 1 || n.SMTPPort > 65535 {
			return fmt.Errorf("smtp_port must be between 1 and 65535, got %d", n.SMTPPort)
		}
		if n.From == "" {
			return fmt.Errorf("from cannot be empty when notification is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// BytesPerSecond returns the audio byte rate derived from the format settings.
func (a *AudioConfig) BytesPerSecond() int {
	return a.SampleRate * a.Channels * a.BitDepth / 8
}

// GetWindowThreshold returns the flush threshold as a time.Duration
func (a *AudioConfig) GetWindowThreshold() time.Duration {
	return time.Duration(a.WindowThresholdMs) * time.Millisecond
}

// GetMaxPending returns the pending audio cap as a time.Duration
func (a *AudioConfig) GetMaxPending() time.Duration {
	return time.Duration(a.MaxPendingMs) * time.Millisecond
}

// GetInterval returns the summary interval as a time.Duration
func (s *SummaryConfig) GetInterval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the summarizer timeout as a time.Duration
func (s *SummarizerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}
