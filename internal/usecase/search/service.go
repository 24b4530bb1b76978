// Package search orchestrates the full query path: compile, execute,
// lineage, and optional cached summarization.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
	"github.com/kailas-cloud/querydex/internal/usecase/lineage"
)

const (
	defaultSize = 10
	maxSize     = 100
)

// Request is one search invocation.
type Request struct {
	Query    string `json:"query"`
	Template string `json:"template"`
	From     int    `json:"from"`
	Size     int    `json:"size"`
	Summary  bool   `json:"summary"`
}

// Lineage is the JSON shape of a lineage extraction.
type Lineage struct {
	RealFields      []string            `json:"real_fields"`
	SyntheticFields []string            `json:"synthetic_fields,omitempty"`
	Contexts        map[string][]string `json:"contexts,omitempty"`
}

// Response is the search result with compilation and lineage metadata.
type Response struct {
	Total         int64          `json:"total"`
	Documents     []Document     `json:"documents"`
	Lineage       Lineage        `json:"lineage"`
	Intent        string         `json:"intent"`
	Confidence    float64        `json:"confidence"`
	Escalated     bool           `json:"escalated"`
	Degraded      bool           `json:"degraded,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	SummaryCached bool           `json:"summary_cached,omitempty"`
	CompiledQuery map[string]any `json:"compiled_query,omitempty"`
}

// Service runs the search pipeline. summarizer and cache may be nil;
// summary requests are then answered without one.
type Service struct {
	compiler   Compiler
	backend    Backend
	templates  TemplateProvider
	summarizer Summarizer
	cache      AnswerCache
	logger     *zap.Logger
}

// New creates a search service.
func New(
	compiler Compiler,
	backend Backend,
	templates TemplateProvider,
	summarizer Summarizer,
	cache AnswerCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		compiler:   compiler,
		backend:    backend,
		templates:  templates,
		summarizer: summarizer,
		cache:      cache,
		logger:     logger,
	}
}

// Search compiles the query, executes it, and attaches field lineage.
// Backend failures are hard errors; summarization failures are not.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	if req.Query == "" {
		return Response{}, fmt.Errorf("query is required: %w", domain.ErrValidation)
	}
	size := req.Size
	if size <= 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	from := req.From
	if from < 0 {
		from = 0
	}

	tmpl, err := s.templateContext(ctx, req.Template)
	if err != nil {
		return Response{}, err
	}

	out, err := s.compiler.Compile(ctx, req.Query, tmpl)
	if err != nil {
		return Response{}, fmt.Errorf("compile: %w", err)
	}

	exec := ExecuteRequest{
		Template: req.Template,
		Query:    out.Query,
		From:     from,
		Size:     size,
	}
	if sort := out.Analysis.Sort(); sort != nil {
		exec.Sort = []analysis.Sort{*sort}
	}

	res, err := s.backend.Execute(ctx, exec)
	if err != nil {
		return Response{}, fmt.Errorf("execute: %w", err)
	}

	resp := Response{
		Total:      res.Total,
		Documents:  res.Documents,
		Lineage:    ToLineage(lineage.Extract(out.Query)),
		Intent:     string(out.Analysis.Intent()),
		Confidence: out.Analysis.Confidence(),
		Escalated:  out.Escalated,
		Degraded:   out.Degraded,
	}

	if req.Summary && s.summarizer != nil {
		resp.Summary, resp.SummaryCached = s.summarize(ctx, req.Query, res.Documents)
	}
	return resp, nil
}

// summarize answers from the cache when the same query has been asked over
// the same result set; otherwise it synthesizes and caches. A summarizer
// failure returns an empty summary, never an error.
func (s *Service) summarize(ctx context.Context, queryText string, docs []Document) (string, bool) {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}

	if s.cache != nil {
		if answer, ok := s.cache.Get(queryText, ids, nil); ok {
			return answer, true
		}
	}

	answer, err := s.summarizer.Summarize(ctx, queryText, docs)
	if err != nil {
		s.logger.Warn("Summarization failed, returning results without summary",
			zap.String("query", queryText),
			zap.Error(err))
		return "", false
	}
	if s.cache != nil {
		s.cache.Set(queryText, ids, answer, nil)
	}
	return answer, false
}

func (s *Service) templateContext(ctx context.Context, template string) (*schema.TemplateContext, error) {
	if template == "" || s.templates == nil {
		return nil, nil
	}
	tmpl, err := s.templates.FieldContext(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", template, err)
	}
	return tmpl, nil
}

// ToLineage converts an extraction into its JSON shape.
func ToLineage(r lineage.Result) Lineage {
	out := Lineage{
		RealFields:      r.RealFields(),
		SyntheticFields: r.SyntheticFields(),
	}
	fields := append(out.RealFields, out.SyntheticFields...)
	if len(fields) > 0 {
		out.Contexts = make(map[string][]string, len(fields))
		for _, f := range fields {
			out.Contexts[f] = r.Contexts(f)
		}
	}
	return out
}
