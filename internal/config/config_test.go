package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			BindAddress:     "0.0.0.0",
			MaxMessageBytes: 1 << 20,
			WindowQueueSize: 8,
		},
		HTTP: HTTPConfig{
			Port:    8081,
			Address: "127.0.0.1",
			Enabled: true,
		},
		Audio: AudioConfig{
			SampleRate:        16000,
			Channels:          1,
			BitDepth:          16,
			WindowThresholdMs: 10000,
			MaxPendingMs:      60000,
		},
		Summary: SummaryConfig{
			IntervalMs: 300000,
		},
		Transcription: TranscriptionConfig{
			Endpoint:      "https://api.example.com/transcribe",
			APIKey:        "test-key",
			Timeout:       30,
			MaxConcurrent: 10,
		},
		Summarizer: SummarizerConfig{
			Provider: "http",
			Endpoint: "https://api.example.com/summarize",
			Timeout:  60,
		},
		Persistence: PersistenceConfig{
			Enabled: true,
			Dir:     "./archive",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid configuration",
			mutate: func(c *Config) {},
		},
		{
			name:        "invalid server port",
			mutate:      func(c *Config) { c.Server.Port = 70000 },
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "invalid sample rate",
			mutate:      func(c *Config) { c.Audio.SampleRate = 11025 },
			expectError: true,
			errorMsg:    "sample_rate must be one of",
		},
		{
			name:        "pending cap below window threshold",
			mutate:      func(c *Config) { c.Audio.MaxPendingMs = 5000 },
			expectError: true,
			errorMsg:    "max_pending_ms",
		},
		{
			name:        "summary interval too short",
			mutate:      func(c *Config) { c.Summary.IntervalMs = 500 },
			expectError: true,
			errorMsg:    "interval_ms must be at least",
		},
		{
			name:        "missing transcription api key",
			mutate:      func(c *Config) { c.Transcription.APIKey = "" },
			expectError: true,
			errorMsg:    "api_key cannot be empty",
		},
		{
			name:        "unknown summarizer provider",
			mutate:      func(c *Config) { c.Summarizer.Provider = "carrier-pigeon" },
			expectError: true,
			errorMsg:    "provider must be",
		},
		{
			name:        "gemini provider without key",
			mutate:      func(c *Config) { c.Summarizer = SummarizerConfig{Provider: "gemini", Timeout: 60} },
			expectError: true,
			errorMsg:    "gemini_api_key cannot be empty",
		},
		{
			name:        "persistence enabled without dir",
			mutate:      func(c *Config) { c.Persistence = PersistenceConfig{Enabled: true} },
			expectError: true,
			errorMsg:    "dir cannot be empty",
		},
		{
			name: "notification enabled without host",
			mutate: func(c *Config) {
				c.Notification = NotificationConfig{Enabled: true, SMTPPort: 587, From: "bot@example.com"}
			},
			expectError: true,
			errorMsg:    "smtp_host cannot be empty",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "trace" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	configYAML := `
server:
  port: 8080
  bind_address: "0.0.0.0"
http:
  port: 8081
  address: "127.0.0.1"
  enabled: true
audio:
  sample_rate: 16000
  channels: 1
  bit_depth: 16
transcription:
  endpoint: "https://api.example.com/transcribe"
  api_key: "test-key"
summarizer:
  provider: "http"
  endpoint: "https://api.example.com/summarize"
persistence:
  enabled: true
  dir: "./archive"
logging:
  level: "info"
  format: "json"
  output: "stdout"
`

	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Omitted fields fall back to the documented defaults.
	if config.Audio.WindowThresholdMs != 10000 {
		t.Errorf("Expected default window threshold 10000ms, got %d", config.Audio.WindowThresholdMs)
	}
	if config.Summary.IntervalMs != 300000 {
		t.Errorf("Expected default summary interval 300000ms, got %d", config.Summary.IntervalMs)
	}
	if config.Transcription.Timeout != 30 {
		t.Errorf("Expected default transcription timeout 30s, got %d", config.Transcription.Timeout)
	}
	if config.Server.WindowQueueSize != 8 {
		t.Errorf("Expected default window queue size 8, got %d", config.Server.WindowQueueSize)
	}
}

func TestConfigLoadInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: not_a_number\n"), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("Expected parse error, got: %v", err)
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	audio := AudioConfig{
		SampleRate:        16000,
		Channels:          1,
		BitDepth:          16,
		WindowThresholdMs: 10000,
		MaxPendingMs:      60000,
	}

	if audio.GetWindowThreshold() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", audio.GetWindowThreshold())
	}
	if audio.GetMaxPending() != 60*time.Second {
		t.Errorf("Expected 60 seconds, got %v", audio.GetMaxPending())
	}
	if audio.BytesPerSecond() != 32000 {
		t.Errorf("Expected 32000 bytes/second for 16kHz mono PCM-16, got %d", audio.BytesPerSecond())
	}

	summary := SummaryConfig{IntervalMs: 300000}
	if summary.GetInterval() != 5*time.Minute {
		t.Errorf("Expected 5 minutes, got %v", summary.GetInterval())
	}

	transcription := TranscriptionConfig{Timeout: 30}
	if transcription.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", transcription.GetTimeoutDuration())
	}
}
