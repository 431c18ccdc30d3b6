// Package config loads and validates the bridge configuration. Everything
// the core needs arrives through the Config struct; no package below cmd
// reads the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Startup-fatal conditions. The process refuses to serve queries without
// a credential, a model, and a tool host to launch.
var (
	ErrMissingAPIKey      = errors.New("api key is required")
	ErrMissingModel       = errors.New("model is required")
	ErrMissingHostCommand = errors.New("tool host command is required")
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

type Config struct {
	// Provider selects the chat backend: "anthropic" or "openai".
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	// BaseURL overrides the provider endpoint (compatible gateways).
	BaseURL string `mapstructure:"base_url"`
	// HostCommand launches the MCP tool server, program plus arguments as
	// a single command line.
	HostCommand string `mapstructure:"host_command"`
	MaxTurns    int    `mapstructure:"max_turns"`
	LogLevel    string `mapstructure:"log_level"`
}

// Load reads defaults, the optional config file at path, and BRIDGE_*
// environment variables, in increasing precedence. Validation is separate:
// the caller may still merge command-line arguments in before Validate.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("provider", ProviderAnthropic)
	v.SetDefault("max_turns", 25)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"provider", "model", "api_key", "base_url", "host_command", "max_turns", "log_level"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.APIKey = os.ExpandEnv(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = conventionalAPIKey(cfg.Provider)
	}
	return cfg, nil
}

// conventionalAPIKey falls back to the provider's usual credential variable
// so existing shells keep working without BRIDGE_API_KEY.
func conventionalAPIKey(providerName string) string {
	switch providerName {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.Model) == "" {
		return ErrMissingModel
	}
	if strings.TrimSpace(c.HostCommand) == "" {
		return ErrMissingHostCommand
	}
	return nil
}
