package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all fast3r configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Provider (Gemini / Veo) access
	Provider ProviderConfig `yaml:"provider"`

	// Model identifiers per selection tier
	Models ModelsConfig `yaml:"models"`

	// Assistant behavior
	Assistant AssistantConfig `yaml:"assistant"`

	// Video generation polling
	Video VideoConfig `yaml:"video"`

	// Reconstruction placeholder pipeline
	Jobs JobsConfig `yaml:"jobs"`

	// Persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ProviderConfig configures the generative-AI provider boundary.
// The API key is read once at startup and handed to the gateway at construction.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// AssistantConfig configures the conversational front end.
type AssistantConfig struct {
	SystemInstruction string   `yaml:"system_instruction"`
	Greeting          string   `yaml:"greeting"`
	ThinkingBudget    int      `yaml:"thinking_budget"`
	ImageSize         string   `yaml:"image_size"`   // 1K, 2K, 4K
	AspectRatio       string   `yaml:"aspect_ratio"` // 16:9, 9:16
	LiveInfoTriggers  []string `yaml:"live_info_triggers"`
	// RecordCommand captures push-to-talk audio; "{output}" is replaced by
	// the capture file. Empty disables recording.
	RecordCommand     []string `yaml:"record_command,omitempty"`
	RecordMIMEType    string   `yaml:"record_mime_type,omitempty"`
}

// VideoConfig bounds the video operation poller.
type VideoConfig struct {
	PollInterval string `yaml:"poll_interval"`
	Timeout      string `yaml:"timeout"`
	Resolution   string `yaml:"resolution"`
}

// JobsConfig configures the placeholder reconstruction pipeline.
type JobsConfig struct {
	CompletionDelay string `yaml:"completion_delay"`
}

// StoreConfig configures the SQLite journal. Empty path disables persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	UsagePath    string `yaml:"usage_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	Categories map[string]bool `yaml:"categories,omitempty"`
	// File receives logs while the interactive UI owns the terminal.
	File string `yaml:"file,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "fast3r",
		Version: "2.0.0",

		Provider: ProviderConfig{
			Timeout: "120s",
		},

		Models: DefaultModels(),

		Assistant: AssistantConfig{
			SystemInstruction: "You are the Fast3R assistant. Answer professionally and help automate 3D reconstruction work.",
			Greeting:          "Hello! I am the Fast3R assistant. Send me an image to analyze, or use /image and /video to generate concept media.",
			ThinkingBudget:    32768,
			ImageSize:         "1K",
			AspectRatio:       "16:9",
			LiveInfoTriggers:  DefaultLiveInfoTriggers(),
		},

		Video: VideoConfig{
			PollInterval: "10s",
			Timeout:      "10m",
			Resolution:   "720p",
		},

		Jobs: JobsConfig{
			CompletionDelay: "8s",
		},

		Store: StoreConfig{
			DatabasePath: ".fast3r/fast3r.db",
			UsagePath:    ".fast3r/usage.json",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   ".fast3r/fast3r.log",
		},
	}
}

// DefaultLiveInfoTriggers returns the terms that mark a question as needing live search.
func DefaultLiveInfoTriggers() []string {
	return []string{
		"who is", "who's", "news", "today", "latest", "current", "information about",
		"คือใคร", "ข่าว", "วันนี้", "ข้อมูล",
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
// GEMINI_API_KEY wins over the generic API_KEY.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
	if path := os.Getenv("FAST3R_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if level := os.Getenv("FAST3R_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider API key not configured (set GEMINI_API_KEY or API_KEY)")
	}
	if err := c.Models.Validate(); err != nil {
		return err
	}
	switch c.Assistant.ImageSize {
	case "1K", "2K", "4K":
	default:
		return fmt.Errorf("invalid image size %q (valid: 1K, 2K, 4K)", c.Assistant.ImageSize)
	}
	switch c.Assistant.AspectRatio {
	case "16:9", "9:16":
	default:
		return fmt.Errorf("invalid aspect ratio %q (valid: 16:9, 9:16)", c.Assistant.AspectRatio)
	}
	if c.Assistant.ThinkingBudget < 0 {
		return fmt.Errorf("thinking budget must not be negative")
	}
	return nil
}

// GetProviderTimeout returns the per-call provider timeout.
func (c *Config) GetProviderTimeout() time.Duration {
	return parseDuration(c.Provider.Timeout, 120*time.Second)
}

// GetPollInterval returns the delay between video operation polls.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Video.PollInterval, 10*time.Second)
}

// GetPollTimeout returns the wall-clock bound on video polling.
func (c *Config) GetPollTimeout() time.Duration {
	return parseDuration(c.Video.Timeout, 10*time.Minute)
}

// GetCompletionDelay returns the placeholder reconstruction delay.
func (c *Config) GetCompletionDelay() time.Duration {
	return parseDuration(c.Jobs.CompletionDelay, 8*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
