package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration for the blob engine and the
// HTTP adapter wrapped around it. AESKeyHex and ExpectedMagic become the
// immutable process-wide values: the key injected into every
// DecryptingStream, and the magic the HTTP handlers compare each blob
// header against.
type Config struct {
	Server    ServerConfig          `mapstructure:"server" validate:"required"`
	Security  SecurityConfig        `mapstructure:"security" validate:"required"`
	Storage   StorageConfig         `mapstructure:"storage" validate:"required"`
	Integrity IntegrityWorkerConfig `mapstructure:"integrity_worker" validate:"required"`
	Logging   LoggingConfig         `mapstructure:"logging" validate:"required"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Host           string        `mapstructure:"host" validate:"required"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"required"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes" validate:"required,min=1"`
}

// SecurityConfig carries the blob engine's two process-wide immutable
// inputs: a 64 hex-character AES-256 key and the
// expected 8-byte magic tag.
type SecurityConfig struct {
	AESKeyHex      string `mapstructure:"aes_key_hex" validate:"required,len=64,hexadecimal"`
	ExpectedMagic  string `mapstructure:"expected_magic" validate:"required,len=8"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"required,min=1"`
}

type StorageConfig struct {
	BucketDir string `mapstructure:"bucket_dir" validate:"required"`
}

type IntegrityWorkerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"required"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Path       string `mapstructure:"path" validate:"required"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=1"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=1"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=1"`
}

// Load reads configuration from a YAML file (path resolved by viper's
// search paths, or $CONFIG_PATH) with BLOBSERVE_-prefixed environment
// variable overrides, then validates it strictly and fails fast.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/blobserve")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	v.SetEnvPrefix("BLOBSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validation error: %w", err)
		}
		var msgs []string
		for _, fieldErr := range validationErrors {
			msgs = append(msgs, fmt.Sprintf(
				"field '%s' failed validation: %s (value: '%v')",
				fieldErr.Namespace(), fieldErr.Tag(), fieldErr.Value(),
			))
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(msgs, "\n"))
	}
	return nil
}
