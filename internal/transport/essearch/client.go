// Package essearch is the HTTP client for the search execution backend.
// It posts compiled query trees and parses hits and aggregation values.
package essearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/metrics"
	"github.com/kailas-cloud/querydex/internal/usecase/compare"
	"github.com/kailas-cloud/querydex/internal/usecase/search"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 2
	defaultBackoff = 200 * time.Millisecond
	groupAggName   = "groups"
	termsAggSize   = 50
)

// Config holds the backend client settings.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// Client talks to the search execution backend. There is no fallback for
// this dependency; every failure is wrapped with domain.ErrSearchBackend
// and propagates to the caller.
type Client struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// New creates a backend client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = defaultRetries
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: retries,
		backoff:    backoff,
		logger:     cfg.Logger,
	}
}

// Execute implements search.Backend.
func (c *Client) Execute(ctx context.Context, req search.ExecuteRequest) (search.ExecuteResult, error) {
	body := map[string]any{
		"query": query.ToMap(req.Query),
		"from":  req.From,
		"size":  req.Size,
	}
	if len(req.Sort) > 0 {
		body["sort"] = sortClauses(req.Sort)
	}

	resp, err := c.doSearch(ctx, "search", req.Template, body)
	if err != nil {
		return search.ExecuteResult{}, err
	}

	docs := make([]search.Document, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		docs = append(docs, search.Document{ID: h.ID, Score: h.Score, Data: h.Source})
	}
	return search.ExecuteResult{Total: resp.Hits.Total.Value, Documents: docs}, nil
}

// Aggregate implements compare.SearchBackend. A count request with no
// field is answered from the hit total.
func (c *Client) Aggregate(
	ctx context.Context, template string, node query.Node, aggs []compare.AggregationRequest,
) (map[string]float64, error) {
	body := map[string]any{
		"query": query.ToMap(node),
		"size":  0,
	}
	aggsBody := map[string]any{}
	var docCountNames []string
	for _, a := range aggs {
		if a.Field == "" {
			docCountNames = append(docCountNames, a.Name)
			continue
		}
		aggsBody[a.Name] = metricAgg(a)
	}
	if len(aggsBody) > 0 {
		body["aggs"] = aggsBody
	}

	resp, err := c.doSearch(ctx, "aggregate", template, body)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(aggs))
	for _, name := range docCountNames {
		out[name] = float64(resp.Hits.Total.Value)
	}
	for name, raw := range resp.Aggregations {
		var metric struct {
			Value *float64 `json:"value"`
		}
		if err := json.Unmarshal(raw, &metric); err != nil || metric.Value == nil {
			continue
		}
		out[name] = *metric.Value
	}
	return out, nil
}

// AggregateGroups implements compare.SearchBackend: a terms split over the
// grouping field with the metric nested inside each bucket.
func (c *Client) AggregateGroups(
	ctx context.Context, template string, node query.Node, groupField string, metric compare.AggregationRequest,
) (map[string]float64, error) {
	body := map[string]any{
		"query": query.ToMap(node),
		"size":  0,
		"aggs": map[string]any{
			groupAggName: map[string]any{
				"terms": map[string]any{"field": groupField, "size": termsAggSize},
				"aggs":  map[string]any{metric.Name: metricAgg(metric)},
			},
		},
	}

	resp, err := c.doSearch(ctx, "aggregate", template, body)
	if err != nil {
		return nil, err
	}

	raw, ok := resp.Aggregations[groupAggName]
	if !ok {
		return map[string]float64{}, nil
	}
	var generic struct {
		Buckets []map[string]json.RawMessage `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse group buckets: %w: %w", err, domain.ErrSearchBackend)
	}

	out := make(map[string]float64, len(generic.Buckets))
	for _, bucket := range generic.Buckets {
		var key string
		if rawKey, ok := bucket["key"]; ok {
			var s string
			if json.Unmarshal(rawKey, &s) == nil {
				key = s
			} else {
				key = string(rawKey)
			}
		}
		if key == "" {
			continue
		}

		value := 0.0
		if rawMetric, ok := bucket[metric.Name]; ok {
			var m struct {
				Value *float64 `json:"value"`
			}
			if json.Unmarshal(rawMetric, &m) == nil && m.Value != nil {
				value = *m.Value
			}
		} else if rawCount, ok := bucket["doc_count"]; ok {
			var n float64
			if json.Unmarshal(rawCount, &n) == nil {
				value = n
			}
		}
		out[key] = value
	}
	return out, nil
}

// Ping verifies backend reachability.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping backend: %w: %w", err, domain.ErrSearchBackend)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("ping backend: status %d: %w", resp.StatusCode, domain.ErrSearchBackend)
	}
	return nil
}

type esResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// doSearch posts one search body with bounded retry. Server-side errors
// and transport failures retry with backoff; client errors never do.
func (c *Client) doSearch(
	ctx context.Context, operation, template string, body map[string]any,
) (*esResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}
	url := fmt.Sprintf("%s/%s/_search", c.baseURL, template)

	start := time.Now()
	defer func() {
		metrics.BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("backend request canceled: %w: %w", ctx.Err(), domain.ErrSearchBackend)
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		resp, retryable, err := c.attempt(ctx, url, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Warn("Backend request failed, retrying",
			zap.String("operation", operation),
			zap.String("template", template),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, url string, payload []byte) (*esResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("search request: %w: %w", err, domain.ErrSearchBackend)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read search response: %w: %w", err, domain.ErrSearchBackend)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("backend status %d: %s: %w",
			resp.StatusCode, truncate(raw), domain.ErrSearchBackend)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, false, fmt.Errorf("backend status %d: %s: %w",
			resp.StatusCode, truncate(raw), domain.ErrSearchBackend)
	}

	var parsed esResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("parse search response: %w: %w", err, domain.ErrSearchBackend)
	}
	return &parsed, false, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// metricAgg renders one aggregation request as a backend aggregation body.
func metricAgg(a compare.AggregationRequest) map[string]any {
	kind := string(a.Type)
	switch a.Type {
	case analysis.AggCount:
		kind = "value_count"
	case analysis.AggCardinality:
		kind = "cardinality"
	}
	return map[string]any{kind: map[string]any{"field": a.Field}}
}

func sortClauses(sorts []analysis.Sort) []map[string]any {
	out := make([]map[string]any, 0, len(sorts))
	for _, s := range sorts {
		out = append(out, map[string]any{
			s.Field: map[string]any{"order": string(s.Direction)},
		})
	}
	return out
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
