package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the querydex API configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Database      DatabaseConfig      `yaml:"database"`
	Storage       StorageConfig       `yaml:"storage"`
	SearchBackend SearchBackendConfig `yaml:"search_backend"`
	Compiler      CompilerConfig      `yaml:"compiler"`
	Analyze       AnalyzeConfig       `yaml:"analyze"`
	Compile       CompileConfig       `yaml:"compile"`
	Cache         CacheConfig         `yaml:"cache"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// SearchBackendConfig holds the search execution backend settings.
type SearchBackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryBackoffMS int    `yaml:"retry_backoff_ms"`
}

// CompilerConfig holds the LLM query compiler settings. Disabled means the
// service runs deterministic-only.
type CompilerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	MaxTokens     int    `yaml:"max_tokens"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

// AnalyzeConfig holds analyzer scoring weights. Zero values fall back to
// the analyzer defaults.
type AnalyzeConfig struct {
	BaseConfidence    float64 `yaml:"base_confidence"`
	IntentWeight      float64 `yaml:"intent_weight"`
	FilterWeight      float64 `yaml:"filter_weight"`
	AggregationWeight float64 `yaml:"aggregation_weight"`
	SortWeight        float64 `yaml:"sort_weight"`
	AmbiguityPenalty  float64 `yaml:"ambiguity_penalty"`
	FullTextMinWords  int     `yaml:"fulltext_min_words"`
}

// CompileConfig holds the arbitration thresholds.
type CompileConfig struct {
	EscalationThreshold   float64 `yaml:"escalation_threshold"`
	MaxSimpleAggregations int     `yaml:"max_simple_aggregations"`
}

// CacheConfig holds answer cache sizing.
type CacheConfig struct {
	MaxEntries       int     `yaml:"max_entries"`
	TTLSec           int     `yaml:"ttl_sec"`
	EvictionFraction float64 `yaml:"eviction_fraction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "querydex:"
	}
	if c.SearchBackend.TimeoutSec <= 0 {
		c.SearchBackend.TimeoutSec = 10
	}
	if c.SearchBackend.MaxRetries < 0 {
		c.SearchBackend.MaxRetries = 0
	}
	if c.SearchBackend.RetryBackoffMS <= 0 {
		c.SearchBackend.RetryBackoffMS = 200
	}
	if c.Compiler.RatePerMinute <= 0 {
		c.Compiler.RatePerMinute = 60
	}
	if c.Compiler.MaxTokens <= 0 {
		c.Compiler.MaxTokens = 1024
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.EvictionFraction <= 0 {
		c.Cache.EvictionFraction = 0.10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.SearchBackend.BaseURL == "" {
		return fmt.Errorf("search_backend.base_url is required")
	}
	if c.Compiler.Enabled && c.Compiler.Model == "" {
		return fmt.Errorf("compiler.model is required when compiler is enabled")
	}
	if c.Compile.EscalationThreshold < 0 || c.Compile.EscalationThreshold > 1 {
		return fmt.Errorf("compile.escalation_threshold must be within [0, 1], got %v",
			c.Compile.EscalationThreshold)
	}
	if c.Cache.EvictionFraction > 1 {
		return fmt.Errorf("cache.eviction_fraction must be within (0, 1], got %v",
			c.Cache.EvictionFraction)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
