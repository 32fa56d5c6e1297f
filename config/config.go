package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen   string `mapstructure:"listen"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

func (g GeneralConfig) Validate() error {
	if strings.TrimSpace(g.Listen) == "" {
		return fmt.Errorf("general.listen is required")
	}
	switch strings.ToLower(g.LogLevel) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("general.log_level %q is not one of debug, info, warn, error", g.LogLevel)
	}
}

// LLMConfig selects and tunes the text analysis backend
type LLMConfig struct {
	Type        string        `mapstructure:"type"` // openai or offline
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

func (l LLMConfig) Validate() error {
	switch l.Type {
	case "offline":
		return nil
	case "openai":
		if strings.TrimSpace(l.APIKey) == "" {
			return fmt.Errorf("llm.api_key is required for the openai backend")
		}
		if strings.TrimSpace(l.Model) == "" {
			return fmt.Errorf("llm.model is required for the openai backend")
		}
	default:
		return fmt.Errorf("llm.type %q is not supported", l.Type)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	return nil
}

// SearchConfig lists the paper discovery providers, queried in order
type SearchConfig struct {
	Providers               []string      `mapstructure:"providers"` // catalog, arxiv, semantic_scholar
	DefaultMaxResults       int           `mapstructure:"default_max_results"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	MaxRetries              int           `mapstructure:"max_retries"`
	ArxivEndpoint           string        `mapstructure:"arxiv_endpoint"`
	SemanticScholarEndpoint string        `mapstructure:"semantic_scholar_endpoint"`
	SemanticScholarAPIKey   string        `mapstructure:"semantic_scholar_api_key"`
}

func (s SearchConfig) Validate() error {
	if len(s.Providers) == 0 {
		return fmt.Errorf("search.providers must name at least one provider")
	}
	for _, p := range s.Providers {
		switch p {
		case "catalog", "arxiv", "semantic_scholar":
		default:
			return fmt.Errorf("search.providers: unknown provider %q", p)
		}
	}
	if s.DefaultMaxResults <= 0 {
		return fmt.Errorf("search.default_max_results must be > 0")
	}
	return nil
}

// SessionConfig controls the session arena
type SessionConfig struct {
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	MaxContextLength  int           `mapstructure:"max_context_length"` // messages sent to the model per chat turn; 0 sends all
	CapabilityTimeout time.Duration `mapstructure:"capability_timeout"`
}

func (s SessionConfig) Validate() error {
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be > 0")
	}
	if s.CleanupInterval < 0 {
		return fmt.Errorf("session.cleanup_interval cannot be negative")
	}
	if s.MaxContextLength < 0 || s.MaxContextLength == 1 {
		return fmt.Errorf("session.max_context_length must be 0 (unbounded) or at least 2")
	}
	if s.CapabilityTimeout <= 0 {
		return fmt.Errorf("session.capability_timeout must be > 0")
	}
	return nil
}

// StorageConfig selects where session snapshots are kept
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // none, file, redis
	File    FileConfig  `mapstructure:"file"`
	Redis   RedisConfig `mapstructure:"redis"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "none":
		return nil
	case "file":
		if strings.TrimSpace(s.File.DataDir) == "" {
			return fmt.Errorf("storage.file.data_dir is required for the file backend")
		}
		return nil
	case "redis":
		return s.Redis.Validate()
	default:
		return fmt.Errorf("storage.backend %q is not supported", s.Backend)
	}
}

// FileConfig contains on-disk snapshot settings
type FileConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      string        `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host is required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port is required")
	}
	if r.TTL < 0 {
		return fmt.Errorf("storage.redis.ttl cannot be negative")
	}
	return nil
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`       // expose /metrics
	OTLPEndpoint string `mapstructure:"otlp_endpoint"` // host:port of an OTLP/HTTP collector; empty disables tracing
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.listen", ":8080")
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_file", "")

	v.SetDefault("llm.type", "offline")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.max_tokens", 800)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("search.providers", []string{"catalog"})
	v.SetDefault("search.default_max_results", 3)
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("search.max_retries", 2)
	v.SetDefault("search.semantic_scholar_api_key", "")
	v.SetDefault("search.arxiv_endpoint", "https://export.arxiv.org/api/query")
	v.SetDefault("search.semantic_scholar_endpoint", "https://api.semanticscholar.org/graph/v1")

	v.SetDefault("session.idle_timeout", time.Hour)
	v.SetDefault("session.cleanup_interval", 10*time.Minute)
	v.SetDefault("session.max_context_length", 30)
	v.SetDefault("session.capability_timeout", 90*time.Second)

	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.file.data_dir", "data/contexts")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.redis.key_prefix", "scholar:session:")
	v.SetDefault("storage.redis.ttl", 24*time.Hour)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// Load reads configuration from path (or the usual locations when path is
// empty) into a fresh viper instance. A missing config file is not an error
// when no explicit path was given: defaults and SCHOLAR_* variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("SCHOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.General.Validate,
		c.LLM.Validate,
		c.Search.Validate,
		c.Session.Validate,
		c.Storage.Validate,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig loads config from file and panics when it is unusable
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}
