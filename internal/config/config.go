package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all banter configuration.
type Config struct {
	// Core settings
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	StateDir string `yaml:"state_dir"` // root for logs, saves, caches

	// Completion API
	LLM LLMConfig `yaml:"llm"`

	// Instance behaviour
	Bot BotConfig `yaml:"bot"`

	// Character sheet
	Persona PersonaConfig `yaml:"persona"`

	// Attachment handling
	Media MediaConfig `yaml:"media"`

	// Transcript archive
	Archive ArchiveConfig `yaml:"archive"`

	// Local document datasets
	Dataset DatasetConfig `yaml:"dataset"`

	// External knowledge services
	Giphy     GiphyConfig     `yaml:"giphy"`
	Wikimedia WikimediaConfig `yaml:"wikimedia"`

	// Admin HTTP API
	Server ServerConfig `yaml:"server"`

	// Prompt template files
	Prompts PromptsConfig `yaml:"prompts"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the OpenAI-compatible completion client.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`

	// History budget in model tokens; the session keeps roughly
	// MaxLength*4 bytes of transcript in each request.
	MaxLength int `yaml:"max_length"`

	// Upper bound on tool-call rounds within a single generation.
	MaxToolRounds int `yaml:"max_tool_rounds"`

	// Per-request timeout applied when the caller's context has no deadline.
	Timeout string `yaml:"timeout"`

	// Place the system message at position 0 instead of just before the
	// most recent message.
	SystemFirst bool `yaml:"system_first"`

	// Outbound request pacing; zero or negative disables the limiter.
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// BotConfig configures conversation instances and their registry.
type BotConfig struct {
	// Persistence namespace; part of the save filename digest.
	Prefix string `yaml:"prefix"`

	// Guarded generation retries before the final unguarded attempt.
	MaxRetries int `yaml:"max_retries"`

	// Platform send retries for transient errors.
	SendRetries int `yaml:"send_retries"`

	// How many recent messages are pulled to the end of outgoing requests.
	RecentWindow int `yaml:"recent_window"`

	// Whether NOTE output is sent to the channel by default.
	NotesDefault bool `yaml:"notes_default"`
}

// PersonaConfig is the character sheet injected into the system prompt.
type PersonaConfig struct {
	Name        string   `yaml:"name"`
	Age         string   `yaml:"age"`
	Occupation  string   `yaml:"occupation"`
	Nationality string   `yaml:"nationality"`
	Appearance  string   `yaml:"appearance"`
	Memories    []string `yaml:"memories"`
}

// MediaConfig configures the attachment content cache.
type MediaConfig struct {
	CacheDir        string `yaml:"cache_dir"` // empty: <state_dir>/media
	FFmpegPath      string `yaml:"ffmpeg_path"`
	FFprobePath     string `yaml:"ffprobe_path"`
	StrictAudio     bool   `yaml:"strict_audio"` // reject over-length audio instead of trimming
	MaxAudioSeconds int    `yaml:"max_audio_seconds"`
	MaxImageDim     int    `yaml:"max_image_dim"`
	JPEGQuality     int    `yaml:"jpeg_quality"`
}

// ArchiveConfig configures the optional sqlite transcript archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty: <state_dir>/archive.db
}

// DatasetConfig configures the local document dataset store.
type DatasetConfig struct {
	Dir string `yaml:"dir"` // empty: <state_dir>/datasets
}

// GiphyConfig configures the Giphy search client.
type GiphyConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Rating  string `yaml:"rating"`
	Limit   int    `yaml:"limit"`
}

// WikimediaConfig configures the MediaWiki client.
type WikimediaConfig struct {
	BaseURL   string `yaml:"base_url"` // e.g. https://en.wikipedia.org/w
	UserAgent string `yaml:"user_agent"`
}

// ServerConfig configures the admin HTTP API.
type ServerConfig struct {
	Addr          string  `yaml:"addr"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// PromptsConfig points at the prompt template files.
type PromptsConfig struct {
	SystemFile   string `yaml:"system_file"`   // empty: built-in template
	ExamplesFile string `yaml:"examples_file"` // empty: built-in examples
	Watch        bool   `yaml:"watch"`
	Debounce     string `yaml:"debounce"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:     "banter",
		Version:  "0.3.0",
		StateDir: ".banter",

		LLM: LLMConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o-mini",
			Temperature:   0.7,
			TopP:          0.9,
			MaxTokens:     1024,
			MaxLength:     8000,
			MaxToolRounds: 8,
			Timeout:       "120s",
			SystemFirst:   false,
		},

		Bot: BotConfig{
			Prefix:       "banter",
			MaxRetries:   3,
			SendRetries:  5,
			RecentWindow: 5,
			NotesDefault: false,
		},

		Persona: PersonaConfig{
			Name:        "Banter",
			Age:         "20",
			Occupation:  "student",
			Nationality: "American",
			Appearance:  "short dark hair, oversized hoodie",
		},

		Media: MediaConfig{
			FFmpegPath:      "ffmpeg",
			FFprobePath:     "ffprobe",
			StrictAudio:     false,
			MaxAudioSeconds: 30,
			MaxImageDim:     512,
			JPEGQuality:     75,
		},

		Archive: ArchiveConfig{
			Enabled: false,
		},

		Giphy: GiphyConfig{
			BaseURL: "https://api.giphy.com/v1",
			Rating:  "pg-13",
			Limit:   5,
		},

		Wikimedia: WikimediaConfig{
			BaseURL:   "https://en.wikipedia.org/w",
			UserAgent: "banter/0.3",
		},

		Server: ServerConfig{
			Addr:          ":8480",
			RatePerSecond: 10,
			RateBurst:     20,
		},

		Prompts: PromptsConfig{
			Watch:    true,
			Debounce: "500ms",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
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

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("BANTER_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("BANTER_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("BANTER_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if dir := os.Getenv("BANTER_STATE_DIR"); dir != "" {
		c.StateDir = dir
	}
	if prefix := os.Getenv("BANTER_PREFIX"); prefix != "" {
		c.Bot.Prefix = prefix
	}
	if addr := os.Getenv("BANTER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if key := os.Getenv("GIPHY_API_KEY"); key != "" {
		c.Giphy.APIKey = key
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or llm.api_key)")
	}
	if c.LLM.MaxLength <= 0 {
		return fmt.Errorf("llm.max_length must be > 0")
	}
	if c.LLM.MaxToolRounds < 1 {
		return fmt.Errorf("llm.max_tool_rounds must be >= 1")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2]")
	}
	if c.Bot.MaxRetries < 0 {
		return fmt.Errorf("bot.max_retries must be >= 0")
	}
	if c.Bot.SendRetries < 1 {
		return fmt.Errorf("bot.send_retries must be >= 1")
	}
	return nil
}

// RequestTimeout returns the completion request timeout as a duration.
func (l LLMConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(l.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// GetRequestTimeout returns the completion request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return c.LLM.RequestTimeout()
}

// GetPromptDebounce returns the prompt watcher debounce as a duration.
func (c *Config) GetPromptDebounce() time.Duration {
	d, err := time.ParseDuration(c.Prompts.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// InstancesDir returns the directory holding persisted instances.
func (c *Config) InstancesDir() string {
	return filepath.Join(c.StateDir, "instances")
}

// MemoriesDir returns the directory holding persisted memory notebooks.
func (c *Config) MemoriesDir() string {
	return filepath.Join(c.StateDir, "memories")
}

// MediaCacheDir returns the attachment cache directory.
func (c *Config) MediaCacheDir() string {
	if c.Media.CacheDir != "" {
		return c.Media.CacheDir
	}
	return filepath.Join(c.StateDir, "media")
}

// ArchivePath returns the sqlite archive location.
func (c *Config) ArchivePath() string {
	if c.Archive.Path != "" {
		return c.Archive.Path
	}
	return filepath.Join(c.StateDir, "archive.db")
}

// DatasetDir returns the dataset store root.
func (c *Config) DatasetDir() string {
	if c.Dataset.Dir != "" {
		return c.Dataset.Dir
	}
	return filepath.Join(c.StateDir, "datasets")
}
