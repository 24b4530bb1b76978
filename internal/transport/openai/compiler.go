// Package openai adapts an OpenAI-compatible chat API into the escalation
// compiler: natural language in, a decoded query tree out.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/metrics"
)

const systemPrompt = `You translate natural-language document queries into a JSON search query.
Respond with a single JSON object using only these clause types:
bool (must/should/filter/must_not/minimum_should_match), match, match_phrase,
term, range (gte/gt/lte/lt), exists, prefix, multi_match, query_string, match_all.
Use only the field names provided. Respond with JSON only, no prose.`

// Config holds the LLM compiler settings.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	User          string
	MaxTokens     int
	RatePerMinute int
	Logger        *zap.Logger
}

// Compiler is the LLM-backed query compiler. Requests are rate-limited
// client-side so an escalation storm cannot exhaust the provider quota.
type Compiler struct {
	client    *openai.Client
	model     string
	user      string
	maxTokens int
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewCompiler creates an OpenAI-compatible LLM compiler.
func NewCompiler(cfg *Config) *Compiler {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Compiler{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		user:      cfg.User,
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		logger:    cfg.Logger,
	}
}

// CompileQuery implements compile.Escalator. Every failure is wrapped with
// domain.ErrCompilerUnavailable so callers degrade instead of failing.
func (c *Compiler) CompileQuery(
	ctx context.Context, queryText string, availableFields []string,
) (query.Node, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, fmt.Errorf("compiler rate limit: %w: %w", err, domain.ErrCompilerUnavailable)
	}

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		User:      c.user,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(queryText, availableFields)},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("error").Inc()
		return nil, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("empty completion response: %w", domain.ErrCompilerUnavailable)
	}

	raw := stripFences(resp.Choices[0].Message.Content)
	node, err := query.Decode([]byte(raw))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode compiled query: %w: %w", err, domain.ErrCompilerUnavailable)
	}

	metrics.LLMRequestsTotal.WithLabelValues("ok").Inc()
	c.logger.Debug("LLM query compiled",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return node, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Compiler) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func userPrompt(queryText string, availableFields []string) string {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(queryText)
	if len(availableFields) > 0 {
		b.WriteString("\nAvailable fields: ")
		b.WriteString(strings.Join(availableFields, ", "))
	}
	return b.String()
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrCompilerUnavailable for degradation.
func parseAPIError(err error) error {
	wrap := domain.ErrCompilerUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("compiler API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("compiler API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("compiler API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("compiler request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
