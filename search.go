package querydex

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/querydex/internal/domain/query"
	domschema "github.com/kailas-cloud/querydex/internal/domain/schema"
	compareuc "github.com/kailas-cloud/querydex/internal/usecase/compare"
	searchuc "github.com/kailas-cloud/querydex/internal/usecase/search"
)

// Analysis is the classification of a natural-language query.
type Analysis struct {
	Intent     string
	QueryType  string
	Confidence float64
	Terms      []string
}

// CompileResult is a compiled query tree with its analysis.
type CompileResult struct {
	// Query is the compiled tree in wire form.
	Query     map[string]any
	Analysis  Analysis
	Escalated bool
	Degraded  bool
}

// SearchRequest is one search invocation.
type SearchRequest struct {
	Query    string
	Template string
	From     int
	Size     int
	Summary  bool
}

// Document is one search hit.
type Document struct {
	ID    string
	Score float64
	Data  map[string]any
}

// SearchResponse is the search result with compilation metadata.
type SearchResponse struct {
	Total         int64
	Documents     []Document
	Intent        string
	Confidence    float64
	Escalated     bool
	Degraded      bool
	Summary       string
	SummaryCached bool
}

// PeriodComparison is a period-over-period comparison result.
type PeriodComparison struct {
	Metric      string
	Type        string
	CurrentGTE  string
	CurrentLTE  string
	PreviousGTE string
	PreviousLTE string
	Comparisons []MetricChange
}

// MetricChange is one field's current-versus-previous result.
type MetricChange struct {
	Field          string
	Current        float64
	Previous       float64
	AbsoluteChange float64
	// PercentChange is nil when the previous value is zero.
	PercentChange *float64
}

// GroupComparison is a metric split by a grouping field, buckets sorted by
// value descending.
type GroupComparison struct {
	Metric string
	Type   string
	Field  string
	Groups []GroupBucket
}

// GroupBucket is one bucket of a group comparison.
type GroupBucket struct {
	Group string
	Value float64
}

// Analyze classifies a query without compiling or executing it.
func (c *Client) Analyze(ctx context.Context, queryText, template string) (Analysis, error) {
	var fieldNames []string
	if template != "" {
		tmpl, err := c.schemas.FieldContext(ctx, template)
		if err != nil {
			return Analysis{}, fmt.Errorf("analyze: %w", err)
		}
		fieldNames = tmpl.FieldNames()
	}
	qa := c.analyzer.Analyze(queryText, fieldNames)
	return Analysis{
		Intent:     string(qa.Intent()),
		QueryType:  string(qa.QueryType()),
		Confidence: qa.Confidence(),
		Terms:      qa.Terms(),
	}, nil
}

// Compile turns a query into its compiled tree without executing it.
func (c *Client) Compile(ctx context.Context, queryText, template string) (CompileResult, error) {
	tmpl, err := c.templateContext(ctx, template)
	if err != nil {
		return CompileResult{}, fmt.Errorf("compile: %w", err)
	}

	out, err := c.compiler.Compile(ctx, queryText, tmpl)
	if err != nil {
		return CompileResult{}, fmt.Errorf("compile: %w", err)
	}
	return CompileResult{
		Query: query.ToMap(out.Query),
		Analysis: Analysis{
			Intent:     string(out.Analysis.Intent()),
			QueryType:  string(out.Analysis.QueryType()),
			Confidence: out.Analysis.Confidence(),
			Terms:      out.Analysis.Terms(),
		},
		Escalated: out.Escalated,
		Degraded:  out.Degraded,
	}, nil
}

// Search compiles and executes a query against the search backend.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	resp, err := c.searchSvc.Search(ctx, searchuc.Request{
		Query:    req.Query,
		Template: req.Template,
		From:     req.From,
		Size:     req.Size,
		Summary:  req.Summary,
	})
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}
	return fromInternalResponse(resp), nil
}

// ComparePeriods compares a metric across the given period and the one
// immediately before it.
func (c *Client) ComparePeriods(
	ctx context.Context, template, metric, period string,
) (PeriodComparison, error) {
	res, err := c.compareSvc.ComparePeriods(ctx, compareuc.PeriodsRequest{
		Template: template,
		Metric:   metric,
		Period:   period,
	})
	if err != nil {
		return PeriodComparison{}, fmt.Errorf("compare periods: %w", err)
	}

	changes := make([]MetricChange, len(res.Comparisons))
	for i, cmp := range res.Comparisons {
		changes[i] = MetricChange{
			Field:          cmp.Field,
			Current:        cmp.Current,
			Previous:       cmp.Previous,
			AbsoluteChange: cmp.AbsoluteChange,
			PercentChange:  cmp.PercentChange,
		}
	}
	return PeriodComparison{
		Metric:      res.Metric,
		Type:        res.Type,
		CurrentGTE:  res.CurrentGTE,
		CurrentLTE:  res.CurrentLTE,
		PreviousGTE: res.PreviousGTE,
		PreviousLTE: res.PreviousLTE,
		Comparisons: changes,
	}, nil
}

// CompareGroups splits a metric by a grouping field.
func (c *Client) CompareGroups(
	ctx context.Context, template, metric, groupField string,
) (GroupComparison, error) {
	res, err := c.compareSvc.CompareGroups(ctx, compareuc.GroupsRequest{
		Template:   template,
		Metric:     metric,
		GroupField: groupField,
	})
	if err != nil {
		return GroupComparison{}, fmt.Errorf("compare groups: %w", err)
	}

	buckets := make([]GroupBucket, len(res.Groups))
	for i, g := range res.Groups {
		buckets[i] = GroupBucket{Group: g.Group, Value: g.Value}
	}
	return GroupComparison{
		Metric: res.Metric,
		Type:   res.Type,
		Field:  res.Field,
		Groups: buckets,
	}, nil
}

func (c *Client) templateContext(ctx context.Context, template string) (*domschema.TemplateContext, error) {
	if template == "" {
		return nil, nil
	}
	tmpl, err := c.schemas.FieldContext(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", template, err)
	}
	return tmpl, nil
}

func fromInternalResponse(resp searchuc.Response) SearchResponse {
	docs := make([]Document, len(resp.Documents))
	for i, d := range resp.Documents {
		docs[i] = Document{ID: d.ID, Score: d.Score, Data: d.Data}
	}
	return SearchResponse{
		Total:         resp.Total,
		Documents:     docs,
		Intent:        resp.Intent,
		Confidence:    resp.Confidence,
		Escalated:     resp.Escalated,
		Degraded:      resp.Degraded,
		Summary:       resp.Summary,
		SummaryCached: resp.SummaryCached,
	}
}
