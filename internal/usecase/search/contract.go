package search

import (
	"context"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
	"github.com/kailas-cloud/querydex/internal/usecase/compile"
)

// Compiler turns query text into a compiled query tree.
type Compiler interface {
	Compile(ctx context.Context, queryText string, tmpl *schema.TemplateContext) (compile.Output, error)
}

// Document is one search hit.
type Document struct {
	ID    string         `json:"id"`
	Score float64        `json:"score"`
	Data  map[string]any `json:"data,omitempty"`
}

// ExecuteRequest is a compiled query plus paging and sort.
type ExecuteRequest struct {
	Template string
	Query    query.Node
	From     int
	Size     int
	Sort     []analysis.Sort
}

// ExecuteResult is the backend's answer to one execution.
type ExecuteResult struct {
	Total     int64
	Documents []Document
}

// Backend executes compiled queries. There is no fallback for it; errors
// propagate to the caller.
type Backend interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// TemplateProvider supplies field metadata for a template.
type TemplateProvider interface {
	FieldContext(ctx context.Context, template string) (*schema.TemplateContext, error)
}

// Summarizer produces a natural-language answer over the result set.
// Optional; search works without one.
type Summarizer interface {
	Summarize(ctx context.Context, queryText string, docs []Document) (string, error)
}

// AnswerCache stores summaries keyed by query and result set.
type AnswerCache interface {
	Get(query string, resultIDs []string, filters map[string]string) (string, bool)
	Set(query string, resultIDs []string, answer string, filters map[string]string)
}
