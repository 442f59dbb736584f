package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/markusylisiurunen/mcpchat/internal/registry"
	"github.com/spf13/viper"
)

var ErrMissingModelKey = errors.New("model API key not found, set GROQ_API_KEY in your .env file")

type Config struct {
	Debug     bool                      `mapstructure:"debug"`
	Log       LogConfig                 `mapstructure:"log"`
	Model     ModelConfig               `mapstructure:"model"`
	Weather   WeatherConfig             `mapstructure:"weather"`
	Math      MathConfig                `mapstructure:"math"`
	Registry  RegistryConfig            `mapstructure:"registry"`
	Providers []registry.ProviderConfig `mapstructure:"providers"`
	Web       WebConfig                 `mapstructure:"web"`

	file string
	v    *viper.Viper
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type ModelConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	Name         string  `mapstructure:"name"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	MaxTurns     int     `mapstructure:"max_turns"`
	Temperature  float64 `mapstructure:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt"`
}

type WeatherConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type MathConfig struct {
	DivideByZeroCompat bool `mapstructure:"divide_by_zero_compat"`
}

type RegistryConfig struct {
	ConflictPolicy string `mapstructure:"conflict_policy"`
}

type WebConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", ".mcpchat/logs")
	v.SetDefault("model.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("model.name", "qwen/qwen3-32b")
	v.SetDefault("model.max_tokens", 4096)
	v.SetDefault("model.max_turns", 12)
	v.SetDefault("model.temperature", 0.6)
	v.SetDefault("model.system_prompt", "")
	v.SetDefault("weather.base_url", "https://api.openweathermap.org/data/2.5/weather")
	v.SetDefault("math.divide_by_zero_compat", true)
	v.SetDefault("registry.conflict_policy", string(registry.ConflictReject))
	v.SetDefault("web.addr", "127.0.0.1:8080")
}

// Load reads .env (if present), then the optional YAML file, then the environment.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MCPCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range map[string][]string{
		"debug":           {"MCPCHAT_DEBUG", "DEBUG"},
		"log.level":       {"MCPCHAT_LOG_LEVEL", "LOG_LEVEL"},
		"model.api_key":   {"MCPCHAT_MODEL_API_KEY", "GROQ_API_KEY"},
		"weather.api_key": {"MCPCHAT_WEATHER_API_KEY", "OPENWEATHER_API_KEY"},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	cfg := &Config{file: file, v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := registry.ParseConflictPolicy(c.Registry.ConflictPolicy); err != nil {
		return err
	}
	names := map[string]bool{}
	for _, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return err
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		names[p.Name] = true
	}
	if c.Model.MaxTurns < 1 {
		return fmt.Errorf("model.max_turns must be at least 1")
	}
	return nil
}

// RequireModelKey fails when no model API key is configured.
func (c *Config) RequireModelKey() error {
	if strings.TrimSpace(c.Model.APIKey) == "" {
		return ErrMissingModelKey
	}
	return nil
}

// WeatherAPIKey resolves the key at call time so a changed environment is picked up.
func (c *Config) WeatherAPIKey() string {
	if c.v == nil {
		return c.Weather.APIKey
	}
	return strings.TrimSpace(c.v.GetString("weather.api_key"))
}

// ProviderList returns the configured providers, or this executable re-run as the built-in
// math and weather providers when none are configured.
func (c *Config) ProviderList(executable string) []registry.ProviderConfig {
	if len(c.Providers) > 0 {
		return c.Providers
	}
	args := func(name string) []string {
		out := []string{"serve", name}
		if c.file != "" {
			out = append(out, "--config", c.file)
		}
		return out
	}
	return []registry.ProviderConfig{
		{Name: "math", Command: executable, Args: args("math"), Transport: registry.TransportStdio},
		{Name: "weather", Command: executable, Args: args("weather"), Transport: registry.TransportStdio},
	}
}
