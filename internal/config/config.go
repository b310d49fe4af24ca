package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/bryanchriswhite/WindowRecorder/internal/output"
	"github.com/bryanchriswhite/WindowRecorder/internal/overlay"
	"github.com/bryanchriswhite/WindowRecorder/internal/recorder"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. WINDOWRECORDER_RECORDING_FRAME_RATE
const EnvPrefix = "WINDOWRECORDER"

// Config represents the application configuration
type Config struct {
	LogLevel   string          `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogPretty  bool            `json:"log_pretty" yaml:"log_pretty" mapstructure:"log_pretty"`
	ServerPort int             `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
	Notify     bool            `json:"notify" yaml:"notify" mapstructure:"notify"`
	Recording  RecordingConfig `json:"recording" yaml:"recording" mapstructure:"recording"`
	Overlay    overlay.Config  `json:"overlay" yaml:"overlay" mapstructure:"overlay"`
}

// RecordingConfig holds defaults for new recording sessions
type RecordingConfig struct {
	FrameRate      float64 `json:"frame_rate" yaml:"frame_rate" mapstructure:"frame_rate"`
	SaveDir        string  `json:"save_dir" yaml:"save_dir" mapstructure:"save_dir"`
	NameSuffix     string  `json:"name_suffix" yaml:"name_suffix" mapstructure:"name_suffix"`
	Codec          string  `json:"codec" yaml:"codec" mapstructure:"codec"`
	FFmpegPath     string  `json:"ffmpeg_path" yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	OffsetX        int     `json:"offset_x" yaml:"offset_x" mapstructure:"offset_x"`
	OffsetY        int     `json:"offset_y" yaml:"offset_y" mapstructure:"offset_y"`
	WidthOverride  int     `json:"width_override" yaml:"width_override" mapstructure:"width_override"`
	HeightOverride int     `json:"height_override" yaml:"height_override" mapstructure:"height_override"`
}

// Manager handles configuration. Reads see the merged view of defaults,
// file, environment and bound flags; Save only persists the file layer plus
// keys changed through Set or SetString.
type Manager struct {
	configPath string
	v          *viper.Viper
	mu         sync.RWMutex

	// changed holds values set explicitly since the file was read
	changed map[string]interface{}
}

// DefaultConfigPath returns ~/.config/windowrecorder/config.yaml
func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, "windowrecorder", "config.yaml"), nil
}

// NewManager loads configFile (or the default path) into v, creating the
// file with defaults when it does not exist. Flags bound to v take
// precedence over the file.
func NewManager(configFile string, v *viper.Viper) (*Manager, error) {
	path := configFile
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m := &Manager{
		configPath: path,
		v:          v,
		changed:    make(map[string]interface{}),
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", path).
			Msg("Config file not found, creating new config")
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", path).
		Msg("Config loaded")

	return m, nil
}

// defaultValues returns the default of every key. The type of each default
// is the type config set parses values into.
func defaultValues() map[string]interface{} {
	saveDir := recorder.DefaultSaveDir
	if home, err := os.UserHomeDir(); err == nil {
		saveDir = filepath.Join(home, "Videos", "windowrecorder")
	}

	return map[string]interface{}{
		"log_level":   "info",
		"log_pretty":  true,
		"server_port": 8090,
		"notify":      false,

		"recording.frame_rate":      recorder.DefaultFrameRate,
		"recording.save_dir":        saveDir,
		"recording.name_suffix":     "",
		"recording.codec":           output.DefaultCodec,
		"recording.ffmpeg_path":     "ffmpeg",
		"recording.offset_x":        0,
		"recording.offset_y":        0,
		"recording.width_override":  0,
		"recording.height_override": 0,

		"overlay.enabled": false,
		"overlay.text":    "{elapsed}",
		"overlay.x":       8,
		"overlay.y":       8,
	}
}

// Keys lists every known configuration key in sorted order
func Keys() []string {
	defaults := defaultValues()
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Default returns the default value of key
func Default(key string) (interface{}, bool) {
	value, ok := defaultValues()[key]
	return value, ok
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaultValues() {
		v.SetDefault(key, value)
	}
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		logger.WithComponent("config").Warn().Err(err).Msg("Failed to decode config")
	}
	return &cfg
}

// GetViper exposes the underlying viper instance for key based access
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// Set updates a single key in memory
func (m *Manager) Set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v.Set(key, value)
	m.changed[key] = value
}

// SetString parses value according to the type of key's current value and
// sets it. Unknown keys are rejected.
func (m *Manager) SetString(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	def, ok := defaultValues()[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	var parsed interface{}
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s (use: true or false)", key, value)
		}
		parsed = b
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		parsed = n
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		parsed = f
	default:
		parsed = value
	}

	if key == "log_level" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
	}

	m.v.Set(key, parsed)
	m.changed[key] = parsed
	return nil
}

// fileConfig returns what belongs in the config file: defaults, then the
// file's current contents, then explicitly changed keys. Environment
// overrides and command-line flags are one-off and never persisted.
func (m *Manager) fileConfig() (*Config, error) {
	fv := viper.New()
	setDefaults(fv)
	fv.SetConfigFile(m.configPath)
	fv.SetConfigType("yaml")
	if err := fv.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	m.mu.RLock()
	for key, value := range m.changed {
		fv.Set(key, value)
	}
	m.mu.RUnlock()

	var cfg Config
	if err := fv.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Save writes the file layer and any changed keys to disk
func (m *Manager) Save() error {
	cfg, err := m.fileConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// GetConfigPath returns the config file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// RecordingOptions builds session options from the configured defaults
func (m *Manager) RecordingOptions() recorder.Options {
	cfg := m.Get()
	rec := cfg.Recording

	// A non-positive frame_rate is passed through for Validate to reject
	opts := recorder.DefaultOptions()
	opts.FrameRate = rec.FrameRate
	if rec.SaveDir != "" {
		opts.SaveDir = rec.SaveDir
	}
	if rec.Codec != "" {
		opts.Codec = rec.Codec
	}
	opts.NameSuffix = rec.NameSuffix
	opts.FFmpegPath = rec.FFmpegPath
	opts.Adjustments = window.Adjustments{
		OffsetX:        rec.OffsetX,
		OffsetY:        rec.OffsetY,
		WidthOverride:  rec.WidthOverride,
		HeightOverride: rec.HeightOverride,
	}
	opts.Overlay = cfg.Overlay
	return opts
}
