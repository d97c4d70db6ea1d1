package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/modelkit/internal/orm/access"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// Config represents the modelkit configuration
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Model    ModelConfig  `mapstructure:"model"`
	Output   OutputConfig `mapstructure:"output"`
}

// ModelConfig holds the model-wide defaults
type ModelConfig struct {
	ChangeTracking string `mapstructure:"change_tracking"`
	AccessMode     string `mapstructure:"access_mode"`
}

// OutputConfig represents terminal output configuration
type OutputConfig struct {
	NoColor bool `mapstructure:"no_color"`
}

// Load loads the configuration from path, or from modelkit.yml or modelkit.yaml in the
// working directory when path is empty. MODELKIT_ environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "warn")
	v.SetDefault("model.change_tracking", "snapshot")
	v.SetDefault("model.access_mode", "prefer_field")
	v.SetDefault("output.no_color", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("modelkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MODELKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ModelOptions converts the model section into model options
func (c *Config) ModelOptions() []metadata.Option {
	var opts []metadata.Option
	if s, err := metadata.ParseChangeTrackingStrategy(c.Model.ChangeTracking); err == nil {
		opts = append(opts, metadata.WithChangeTrackingStrategy(s))
	}
	if mode, err := access.ParseMode(c.Model.AccessMode); err == nil {
		opts = append(opts, metadata.WithPropertyAccessMode(mode))
	}
	return opts
}

// NewLogger builds a development logger at the configured level
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func validateConfig(cfg *Config) error {
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got: %s", cfg.LogLevel)
	}
	if _, err := metadata.ParseChangeTrackingStrategy(cfg.Model.ChangeTracking); err != nil {
		return fmt.Errorf("model.change_tracking: %w", err)
	}
	if _, err := access.ParseMode(cfg.Model.AccessMode); err != nil {
		return fmt.Errorf("model.access_mode: %w", err)
	}
	return nil
}
