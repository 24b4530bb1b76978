package compile

import (
	"context"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
)

// Analyzer classifies query text and extracts filters.
type Analyzer interface {
	Analyze(queryText string, availableFields []string) analysis.QueryAnalysis
}

// FieldResolver resolves semantic field tokens to concrete field names.
type FieldResolver interface {
	Resolve(token string, tmpl *schema.TemplateContext) []string
	ResolveStrict(token string, tmpl *schema.TemplateContext) ([]string, error)
}

// Escalator is the external LLM-based query compiler, invoked only when
// the arbitration gate routes a request off the deterministic path.
type Escalator interface {
	CompileQuery(ctx context.Context, queryText string, availableFields []string) (query.Node, error)
}
