// Package config loads tool configuration from a YAML file and the
// environment. Precedence is flags over environment over file over
// defaults; flag binding happens in the command layer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/JMarkstrom/entraYK/pkg/enroll"
	"github.com/JMarkstrom/entraYK/pkg/fido"
	"github.com/JMarkstrom/entraYK/pkg/graph"
)

// DefaultOrigin is the relying-party origin Entra expects inside
// clientDataJSON for credentials registered through the Graph API.
const DefaultOrigin = "https://login.microsoft.com"

// envPrefix namespaces environment overrides, e.g. ENTRAYK_TENANT_ID.
const envPrefix = "ENTRAYK"

// Config is the tool configuration.
type Config struct {
	TenantID   string `mapstructure:"tenant_id"`
	ClientID   string `mapstructure:"client_id"`
	Origin     string `mapstructure:"origin"`
	RecordPath string `mapstructure:"record_path"`
	DBPath     string `mapstructure:"db_path"`
	TokenCache string `mapstructure:"token_cache"`
	PINLength  int    `mapstructure:"pin_length"`
	LogLevel   string `mapstructure:"log_level"`
}

// Dir returns the configuration directory, ~/.entrayk.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".entrayk")
}

// Load reads configuration from path, or from the default location when
// path is empty. A missing default file is not an error; explicit paths
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("client_id", graph.DefaultClientID)
	v.SetDefault("origin", DefaultOrigin)
	v.SetDefault("record_path", enroll.DefaultRecordPath)
	v.SetDefault("token_cache", filepath.Join(Dir(), "token.json"))
	v.SetDefault("pin_length", fido.DefaultPINLength)
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PINLength < 4 || c.PINLength > 8 {
		return fmt.Errorf("pin_length must be between 4 and 8, got %d", c.PINLength)
	}
	if !strings.HasPrefix(c.Origin, "https://") {
		return fmt.Errorf("origin must be an https URL, got %q", c.Origin)
	}
	return nil
}
