// Package config handles configuration loading for signalroi.
// It supports YAML config files, a local .env file and environment variable
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Advisor  AdvisorConfig  `mapstructure:"advisor"  yaml:"advisor"  json:"advisor"`
	Waitlist WaitlistConfig `mapstructure:"waitlist" yaml:"waitlist" json:"waitlist"`
	Store    StoreConfig    `mapstructure:"store"    yaml:"store"    json:"store"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"      json:"api"`
	Display  DisplayConfig  `mapstructure:"display"  yaml:"display"  json:"display"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"  json:"logging"`
}

// AdvisorConfig holds the text-generation settings used for commentary.
type AdvisorConfig struct {
	Backend    string `mapstructure:"backend"     yaml:"backend"     json:"backend"` // "rest" or "sdk"
	GeminiKey  string `mapstructure:"gemini_key"  yaml:"gemini_key"  json:"-"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	// CacheTTLSec keeps generated insights per input fingerprint; 0 disables.
	CacheTTLSec int `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec" json:"cache_ttl_sec"`

	Insights GenerationConfig `mapstructure:"insights" yaml:"insights" json:"insights"`
	Chat     GenerationConfig `mapstructure:"chat"     yaml:"chat"     json:"chat"`
}

// GenerationConfig tunes one kind of advisor request.
type GenerationConfig struct {
	Model       string  `mapstructure:"model"       yaml:"model"       json:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	TopK        int     `mapstructure:"top_k"       yaml:"top_k"       json:"top_k"`
	TopP        float64 `mapstructure:"top_p"       yaml:"top_p"       json:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"  yaml:"max_tokens"  json:"max_tokens"`
}

// WaitlistConfig holds Mailchimp audience credentials.
type WaitlistConfig struct {
	APIKey       string `mapstructure:"api_key"       yaml:"api_key"       json:"-"`
	AudienceID   string `mapstructure:"audience_id"   yaml:"audience_id"   json:"audience_id"`
	ServerPrefix string `mapstructure:"server_prefix" yaml:"server_prefix" json:"server_prefix"` // e.g., "us21"
}

// StoreConfig selects where input snapshots are kept.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"      yaml:"driver"      json:"driver"` // "sqlite" or "memory"
	Path       string `mapstructure:"path"        yaml:"path"        json:"path"`
	DefaultKey string `mapstructure:"default_key" yaml:"default_key" json:"default_key"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
	// AIRequestsPerMinute limits advisor calls per client IP; 0 disables.
	AIRequestsPerMinute int `mapstructure:"ai_requests_per_minute" yaml:"ai_requests_per_minute" json:"ai_requests_per_minute"`
	// TrustProxy keys rate limits on X-Forwarded-For / X-Real-IP. Enable it
	// only behind a reverse proxy that sets those headers.
	TrustProxy bool `mapstructure:"trust_proxy" yaml:"trust_proxy" json:"trust_proxy"`
}

// DisplayConfig holds presentation defaults.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme" json:"theme"` // "light" or "dark"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Addr returns the host:port the API server listens on.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.signalroi/config.yaml (home directory)
//  3. /etc/signalroi/config.yaml (system)
//
// A .env file in the working directory is loaded first; it never overrides
// variables already set in the environment.
// Environment variables override config file values.
// Format: SIGNALROI_<SECTION>_<KEY>, e.g., SIGNALROI_ADVISOR_GEMINI_KEY
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := newViper()

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".signalroi"))
	v.AddConfigPath("/etc/signalroi")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, fall back to defaults and env vars
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SIGNALROI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override sensitive values from environment
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Advisor defaults
	v.SetDefault("advisor.backend", "rest")
	v.SetDefault("advisor.timeout_sec", 60)
	v.SetDefault("advisor.cache_ttl_sec", 600)

	v.SetDefault("advisor.insights.model", "gemini-3-flash-preview")
	v.SetDefault("advisor.insights.temperature", 0.4)
	v.SetDefault("advisor.insights.top_k", 20)
	v.SetDefault("advisor.insights.top_p", 0.8)
	v.SetDefault("advisor.insights.max_tokens", 1600) // ~500 words + formatting

	v.SetDefault("advisor.chat.model", "gemini-2.5-flash")
	v.SetDefault("advisor.chat.temperature", 0.7)
	v.SetDefault("advisor.chat.top_k", 40)
	v.SetDefault("advisor.chat.top_p", 0.95)
	v.SetDefault("advisor.chat.max_tokens", 800)

	// Store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", filepath.Join(homeDir(), ".signalroi", "signalroi.db"))
	v.SetDefault("store.default_key", "d2c_dashboard_v1")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.ai_requests_per_minute", 10)
	v.SetDefault("api.trust_proxy", false)

	// Display defaults
	v.SetDefault("display.theme", "light")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The unprefixed names are the ones the hosted deployment already uses; the
// prefixed names win when both are set.
func overrideFromEnv(cfg *Config) {
	overrides := []struct {
		dst  *string
		envs []string
	}{
		{&cfg.Advisor.GeminiKey, []string{"GEMINI_API_KEY", "SIGNALROI_ADVISOR_GEMINI_KEY"}},
		{&cfg.Waitlist.APIKey, []string{"MAILCHIMP_API_KEY", "SIGNALROI_WAITLIST_API_KEY"}},
		{&cfg.Waitlist.AudienceID, []string{"MAILCHIMP_AUDIENCE_ID", "SIGNALROI_WAITLIST_AUDIENCE_ID"}},
		{&cfg.Waitlist.ServerPrefix, []string{"MAILCHIMP_SERVER_PREFIX", "SIGNALROI_WAITLIST_SERVER_PREFIX"}},
	}
	for _, o := range overrides {
		for _, env := range o.envs {
			if val := os.Getenv(env); val != "" {
				*o.dst = val
			}
		}
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
