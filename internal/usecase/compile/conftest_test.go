package compile

import (
	"context"
	"fmt"
	"testing"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	dommap "github.com/kailas-cloud/querydex/internal/domain/mapping"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
)

// stubAnalyzer returns a canned analysis regardless of input.
type stubAnalyzer struct {
	qa analysis.QueryAnalysis
}

func (s *stubAnalyzer) Analyze(_ string, _ []string) analysis.QueryAnalysis {
	return s.qa
}

// stubResolver resolves tokens through a fixed table.
type stubResolver struct {
	fields map[string][]string
}

func (s *stubResolver) Resolve(token string, _ *schema.TemplateContext) []string {
	return s.fields[token]
}

func (s *stubResolver) ResolveStrict(token string, tmpl *schema.TemplateContext) ([]string, error) {
	fields := s.Resolve(token, tmpl)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%q: %w", token, domain.ErrUnresolvedField)
	}
	return fields, nil
}

// memRepo backs a real registry for pipeline tests.
type memRepo struct {
	stored []dommap.Mapping
}

func (r *memRepo) LoadAll(_ context.Context) ([]dommap.Mapping, error) {
	return r.stored, nil
}

func (r *memRepo) Save(_ context.Context, m dommap.Mapping) error {
	r.stored = append(r.stored, m)
	return nil
}

func mustMapping(t *testing.T, name string, fields map[string]string) dommap.Mapping {
	t.Helper()
	m, err := dommap.New(name, fields, "", nil, true)
	if err != nil {
		t.Fatalf("mapping.New %s: %v", name, err)
	}
	return m
}

// stubEscalator records calls and serves a canned node or error.
type stubEscalator struct {
	node  query.Node
	err   error
	calls int
}

func (s *stubEscalator) CompileQuery(_ context.Context, _ string, _ []string) (query.Node, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.node, nil
}

func mustAnalysis(
	t *testing.T,
	intent analysis.Intent, confidence float64,
	filters []analysis.FilterSpec, aggs []analysis.AggregationSpec,
	queryType analysis.QueryType, fullText bool, terms []string,
) analysis.QueryAnalysis {
	t.Helper()
	qa, err := analysis.New(intent, confidence, filters, aggs, queryType, fullText, nil, terms)
	if err != nil {
		t.Fatalf("analysis.New: %v", err)
	}
	return qa
}
