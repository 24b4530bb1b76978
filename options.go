package querydex

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs     []string
	password  string
	keyPrefix string

	backendURL     string
	backendAPIKey  string
	backendTimeout time.Duration

	compilerAPIKey  string
	compilerBaseURL string
	compilerModel   string

	escalationThreshold float64

	logger *zap.Logger
}

// WithRedis sets the Redis connection for mapping and template storage.
func WithRedis(addrs []string, password string) Option {
	return func(c *clientConfig) {
		c.addrs = addrs
		c.password = password
	}
}

// WithKeyPrefix sets the storage key prefix. Defaults to "querydex:".
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.keyPrefix = prefix
	}
}

// WithSearchBackend sets the search execution backend endpoint.
func WithSearchBackend(baseURL, apiKey string) Option {
	return func(c *clientConfig) {
		c.backendURL = baseURL
		c.backendAPIKey = apiKey
	}
}

// WithBackendTimeout sets the per-request search backend timeout.
func WithBackendTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.backendTimeout = d
	}
}

// WithCompiler enables the LLM query compiler. Without it the client
// answers deterministically only.
func WithCompiler(apiKey, model string) Option {
	return func(c *clientConfig) {
		c.compilerAPIKey = apiKey
		c.compilerModel = model
	}
}

// WithCompilerBaseURL points the LLM compiler at an OpenAI-compatible
// endpoint.
func WithCompilerBaseURL(baseURL string) Option {
	return func(c *clientConfig) {
		c.compilerBaseURL = baseURL
	}
}

// WithEscalationThreshold overrides the confidence below which queries
// escalate to the LLM compiler.
func WithEscalationThreshold(threshold float64) Option {
	return func(c *clientConfig) {
		c.escalationThreshold = threshold
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
