package compare

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
)

// stubResolver resolves tokens through a fixed table.
type stubResolver struct {
	fields map[string][]string
}

func (s *stubResolver) ResolveStrict(token string, _ *schema.TemplateContext) ([]string, error) {
	fields := s.fields[token]
	if len(fields) == 0 {
		return nil, fmt.Errorf("%q: %w", token, domain.ErrUnresolvedField)
	}
	return fields, nil
}

// stubTemplates serves one fixed template context.
type stubTemplates struct {
	tmpl *schema.TemplateContext
}

func (s *stubTemplates) FieldContext(_ context.Context, _ string) (*schema.TemplateContext, error) {
	return s.tmpl, nil
}

type aggregateCall struct {
	template string
	node     query.Node
	aggs     []AggregationRequest
}

// stubBackend serves canned aggregation results in call order.
type stubBackend struct {
	results []map[string]float64
	err     error
	calls   []aggregateCall

	groupValues map[string]float64
	groupField  string
}

func (s *stubBackend) Aggregate(
	_ context.Context, template string, node query.Node, aggs []AggregationRequest,
) (map[string]float64, error) {
	s.calls = append(s.calls, aggregateCall{template: template, node: node, aggs: aggs})
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) == 0 {
		return map[string]float64{}, nil
	}
	out := s.results[0]
	s.results = s.results[1:]
	return out, nil
}

func (s *stubBackend) AggregateGroups(
	_ context.Context, _ string, _ query.Node, groupField string, _ AggregationRequest,
) (map[string]float64, error) {
	s.groupField = groupField
	if s.err != nil {
		return nil, s.err
	}
	return s.groupValues, nil
}
