package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	ModelSettings map[string]ModelSettings `json:"model_settings" yaml:"model_settings"`
	AudioSettings AudioSettings            `json:"audio_settings" yaml:"audio_settings"`
	Language      string                   `json:"language" yaml:"language"`
	DefaultModel  string                   `json:"default_model" yaml:"default_model"`
	Device        string                   `json:"device" yaml:"device"` // "auto", "cpu" or "gpu"
	ModelsDir     string                   `json:"models_dir" yaml:"models_dir"`
	StorageDir    string                   `json:"storage_dir" yaml:"storage_dir"`
	Recognizer    RecognizerConfig         `json:"recognizer" yaml:"recognizer"`
	Store         StoreConfig              `json:"store" yaml:"store"`
	MetricsAddr   string                   `json:"metrics_addr" yaml:"metrics_addr"`
	LogLevel      string                   `json:"log_level" yaml:"log_level"`
}

// ModelSettings holds decode settings for one model size.
type ModelSettings struct {
	BeamSize int  `json:"beam_size" yaml:"beam_size"`
	BestOf   int  `json:"best_of" yaml:"best_of"`
	FP16     bool `json:"fp16" yaml:"fp16"`
}

// AudioSettings holds audio loading limits.
type AudioSettings struct {
	SampleRate  int     `json:"sample_rate" yaml:"sample_rate"`
	MaxDuration float64 `json:"max_duration" yaml:"max_duration"` // seconds
	MinDuration float64 `json:"min_duration" yaml:"min_duration"` // seconds
}

// RecognizerConfig holds settings for the hosted/offline fallback recognizer.
type RecognizerConfig struct {
	Endpoint                 string `json:"endpoint" yaml:"endpoint"`
	APIKey                   string `json:"api_key" yaml:"api_key"`
	Model                    string `json:"model" yaml:"model"`
	TimeoutSeconds           int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries               int    `json:"max_retries" yaml:"max_retries"`
	BackoffSeconds           int    `json:"backoff_seconds" yaml:"backoff_seconds"`
	VoskModelPath            string `json:"vosk_model_path" yaml:"vosk_model_path"`
	FallbackOnUnintelligible bool   `json:"fallback_on_unintelligible" yaml:"fallback_on_unintelligible"`
}

// StoreConfig selects where analysis records are saved.
type StoreConfig struct {
	Backend    string `json:"backend" yaml:"backend"` // "none", "file" or "mongo"
	MongoURI   string `json:"mongo_uri" yaml:"mongo_uri"`
	Database   string `json:"database" yaml:"database"`
	Collection string `json:"collection" yaml:"collection"`
}

// Sizes lists the model sizes accepted in model_settings and default_model.
var Sizes = []string{"tiny", "base", "small", "medium", "large", "large-v2"}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-transcriber")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "model_settings.json")
}

// DefaultModelsDir returns the default directory for downloaded model weights.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "gostt-transcriber", "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		ModelSettings: map[string]ModelSettings{
			"tiny": {BeamSize: 5, BestOf: 5, FP16: true},
			"base": {BeamSize: 5, BestOf: 5, FP16: true},
		},
		AudioSettings: AudioSettings{
			SampleRate:  16000,
			MaxDuration: 600,
			MinDuration: 1,
		},
		Language:     "en",
		DefaultModel: "tiny",
		Device:       "auto",
		ModelsDir:    DefaultModelsDir(),
		StorageDir:   "storage",
		Recognizer: RecognizerConfig{
			Endpoint:       "https://api.openai.com/v1/audio/transcriptions",
			Model:          "whisper-1",
			TimeoutSeconds: 10,
			MaxRetries:     3,
			BackoffSeconds: 2,
		},
		Store: StoreConfig{
			Backend:    "file",
			Database:   "gostt",
			Collection: "speech_analysis",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a JSON or YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	// JSON is a subset of YAML, so one decoder handles both formats.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ModelsDir = expandTilde(cfg.ModelsDir)
	cfg.StorageDir = expandTilde(cfg.StorageDir)
	cfg.Recognizer.VoskModelPath = expandTilde(cfg.Recognizer.VoskModelPath)

	return cfg, nil
}

// LoadOrCreate loads the config at path. When the file does not exist the
// defaults are written there and returned with created set.
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, err = Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(statErr) {
		return nil, false, fmt.Errorf("checking config file: %w", statErr)
	}

	cfg = Default()
	if err := Write(path, cfg); err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// Write saves cfg to path, creating parent directories. Files ending in
// .json are written as indented JSON, anything else as YAML.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(cfg, "", "    ")
	} else {
		var body []byte
		body, err = yaml.Marshal(cfg)
		data = append([]byte("# gostt-transcriber configuration\n"), body...)
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if !validSize(c.DefaultModel) {
		return fmt.Errorf("default_model must be one of %s, got %q", strings.Join(Sizes, ", "), c.DefaultModel)
	}

	for size, ms := range c.ModelSettings {
		if !validSize(size) {
			return fmt.Errorf("model_settings: unknown model size %q", size)
		}
		if ms.BeamSize <= 0 {
			return fmt.Errorf("model_settings.%s.beam_size must be > 0", size)
		}
		if ms.BestOf <= 0 {
			return fmt.Errorf("model_settings.%s.best_of must be > 0", size)
		}
	}

	if c.AudioSettings.SampleRate <= 0 {
		return fmt.Errorf("audio_settings.sample_rate must be > 0")
	}
	if c.AudioSettings.MaxDuration <= 0 {
		return fmt.Errorf("audio_settings.max_duration must be > 0")
	}
	if c.AudioSettings.MinDuration < 0 || c.AudioSettings.MinDuration >= c.AudioSettings.MaxDuration {
		return fmt.Errorf("audio_settings.min_duration must be in [0, max_duration)")
	}

	if c.Language == "" {
		return fmt.Errorf("language must not be empty")
	}

	switch c.Device {
	case "auto", "cpu", "gpu":
	default:
		return fmt.Errorf("device must be \"auto\", \"cpu\" or \"gpu\", got %q", c.Device)
	}

	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir must not be empty")
	}

	if c.Recognizer.MaxRetries <= 0 {
		return fmt.Errorf("recognizer.max_retries must be > 0")
	}
	if c.Recognizer.TimeoutSeconds <= 0 {
		return fmt.Errorf("recognizer.timeout_seconds must be > 0")
	}
	if c.Recognizer.BackoffSeconds < 0 {
		return fmt.Errorf("recognizer.backoff_seconds must be >= 0")
	}

	switch c.Store.Backend {
	case "none", "file":
	case "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("store.mongo_uri is required for the mongo backend")
		}
		if c.Store.Database == "" {
			return fmt.Errorf("store.database is required for the mongo backend")
		}
	default:
		return fmt.Errorf("store.backend must be none, file, or mongo, got %q", c.Store.Backend)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ModelSettingsFor returns the decode settings for size, falling back to
// beam 5 / best_of 5 / fp16 when the file has no entry for it.
func (c *Config) ModelSettingsFor(size string) ModelSettings {
	if ms, ok := c.ModelSettings[size]; ok {
		return ms
	}
	return ModelSettings{BeamSize: 5, BestOf: 5, FP16: true}
}

// AudioDir is where captured recordings are stored.
func (c *Config) AudioDir() string { return filepath.Join(c.StorageDir, "audio") }

// TranscriptionsDir is where transcript files are written.
func (c *Config) TranscriptionsDir() string { return filepath.Join(c.StorageDir, "transcriptions") }

// RecordsDir is the root of the file record store.
func (c *Config) RecordsDir() string { return filepath.Join(c.StorageDir, "records") }

// ParseLogLevel maps a config log level to a slog.Level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validSize(s string) bool {
	for _, size := range Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
