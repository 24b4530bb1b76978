package compare

import (
	"context"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
)

// FieldResolver resolves semantic field tokens to concrete field names.
// Comparison paths use the strict variant only.
type FieldResolver interface {
	ResolveStrict(token string, tmpl *schema.TemplateContext) ([]string, error)
}

// AggregationRequest is a fully resolved single-field aggregation.
type AggregationRequest struct {
	Name  string
	Field string
	Type  analysis.AggregationType
}

// SearchBackend executes compiled queries with aggregations. Aggregate
// returns metric values by aggregation name; AggregateGroups splits one
// metric by a grouping field and returns the value per bucket key.
type SearchBackend interface {
	Aggregate(ctx context.Context, template string, node query.Node, aggs []AggregationRequest) (map[string]float64, error)
	AggregateGroups(ctx context.Context, template string, node query.Node, groupField string, metric AggregationRequest) (map[string]float64, error)
}

// TemplateProvider supplies field metadata for a template.
type TemplateProvider interface {
	FieldContext(ctx context.Context, template string) (*schema.TemplateContext, error)
}
