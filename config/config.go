// Package config provides YAML-based configuration loading for the engine
// link host.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root host configuration.
type Config struct {
	// Engine holds engine subprocess settings
	Engine EngineConfig `mapstructure:"engine"`

	// Channel holds IPC channel settings
	Channel ChannelConfig `mapstructure:"channel"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`
}

// EngineConfig defines how the native engine process is launched.
type EngineConfig struct {
	// Path to the engine binary
	Path string `mapstructure:"path"`
	// Args are passthrough CLI arguments appended after the endpoint address
	Args []string `mapstructure:"args"`
}

// ChannelConfig defines IPC channel tuning.
type ChannelConfig struct {
	// AcceptTimeout bounds the wait for the engine to connect at startup
	AcceptTimeout time.Duration `mapstructure:"accept_timeout"`
	// RequestTimeout is the default per-call timeout applied by the host
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// MaxFrameBytes caps a single frame in either direction
	MaxFrameBytes int `mapstructure:"max_frame_bytes"`
	// DispatchBuffer is the listener dispatch queue capacity
	DispatchBuffer int `mapstructure:"dispatch_buffer"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`
	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{},
		Channel: ChannelConfig{
			AcceptTimeout:  10 * time.Second,
			RequestTimeout: 30 * time.Second,
			MaxFrameBytes:  4_194_304,
			DispatchBuffer: 256,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/enginelink.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from the provided path (if non-empty), otherwise
// it searches common locations and supports environment overrides.
// Environment variables use the prefix ENGINELINK and `.`/`-` are replaced
// with `_`. Example: ENGINELINK_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ENGINELINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("engine.path", cfg.Engine.Path)
	v.SetDefault("engine.args", cfg.Engine.Args)
	v.SetDefault("channel.accept_timeout", cfg.Channel.AcceptTimeout)
	v.SetDefault("channel.request_timeout", cfg.Channel.RequestTimeout)
	v.SetDefault("channel.max_frame_bytes", cfg.Channel.MaxFrameBytes)
	v.SetDefault("channel.dispatch_buffer", cfg.Channel.DispatchBuffer)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("enginelink")
		v.AddConfigPath(".")
		if home, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(home + "/enginelink")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
			// No file is fine; defaults plus env apply.
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Channel.MaxFrameBytes <= 0 {
		return errors.New("channel.max_frame_bytes must be positive")
	}
	if c.Channel.AcceptTimeout <= 0 {
		return errors.New("channel.accept_timeout must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
