// Package compile assembles compiled query trees and arbitrates between
// the deterministic builder and the external LLM compiler.
package compile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
)

// defaultContentField is the extracted-text field present on every document.
const defaultContentField = "content"

// Config holds the arbitration thresholds, defined once and injected.
type Config struct {
	// EscalationThreshold routes analyses below this confidence to the
	// LLM compiler.
	EscalationThreshold float64 `yaml:"escalation_threshold"`
	// MaxSimpleAggregations is the largest aggregation list the
	// deterministic path keeps.
	MaxSimpleAggregations int `yaml:"max_simple_aggregations"`
}

// DefaultConfig returns the standard arbitration settings.
func DefaultConfig() Config {
	return Config{
		EscalationThreshold:   0.6,
		MaxSimpleAggregations: 1,
	}
}

// simpleAggTypes are cheap enough to stay on the deterministic path.
var simpleAggTypes = map[analysis.AggregationType]struct{}{
	analysis.AggSum: {}, analysis.AggAvg: {},
	analysis.AggCount: {}, analysis.AggCardinality: {},
}

// Output is the result of one compilation request.
type Output struct {
	Query     query.Node
	Analysis  analysis.QueryAnalysis
	Escalated bool
	Degraded  bool
}

// Aggregation is a fully resolved aggregation request: one concrete field,
// no semantic tokens left.
type Aggregation struct {
	Name  string
	Field string
	Type  analysis.AggregationType
}

// Compiler runs analysis, arbitration and query building.
type Compiler struct {
	cfg      Config
	analyzer Analyzer
	resolver FieldResolver
	esc      Escalator
	outcomes *prometheus.CounterVec
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Compiler. esc may be nil (deterministic-only deployment);
// outcomes is a counter vec with label "outcome", may be nil.
func New(
	cfg Config,
	analyzer Analyzer,
	resolver FieldResolver,
	esc Escalator,
	outcomes *prometheus.CounterVec,
	logger *zap.Logger,
) *Compiler {
	return &Compiler{
		cfg:      cfg,
		analyzer: analyzer,
		resolver: resolver,
		esc:      esc,
		outcomes: outcomes,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the date-resolution clock (tests).
func (c *Compiler) WithClock(now func() time.Time) *Compiler {
	c.now = now
	return c
}

// ShouldEscalate decides whether the deterministic output is trusted:
// escalate on low confidence, compound aggregations, or aggregation types
// outside the simple set.
func (c *Compiler) ShouldEscalate(qa analysis.QueryAnalysis) bool {
	if qa.Confidence() < c.cfg.EscalationThreshold {
		return true
	}
	aggs := qa.Aggregations()
	if len(aggs) > c.cfg.MaxSimpleAggregations {
		return true
	}
	for _, a := range aggs {
		if _, ok := simpleAggTypes[a.Type]; !ok {
			return true
		}
	}
	return false
}

// Compile analyzes the query text, arbitrates, and returns a compiled
// query tree. An LLM compiler failure degrades gracefully to the
// deterministic tree; the request never fails for that reason alone.
func (c *Compiler) Compile(
	ctx context.Context, queryText string, tmpl *schema.TemplateContext,
) (Output, error) {
	if queryText == "" {
		return Output{}, fmt.Errorf("query text is required: %w", domain.ErrValidation)
	}

	var fieldNames []string
	if tmpl != nil {
		fieldNames = tmpl.FieldNames()
	}

	qa := c.analyzer.Analyze(queryText, fieldNames)
	node, unresolved := c.Build(queryText, qa, tmpl)

	if !c.ShouldEscalate(qa) && len(unresolved) == 0 {
		c.count("deterministic")
		return Output{Query: node, Analysis: qa}, nil
	}

	if c.esc == nil {
		// Dropping the unresolved clauses would silently widen the query.
		if len(unresolved) > 0 {
			return Output{}, fmt.Errorf("filter fields %s: %w: %w",
				strings.Join(unresolved, ", "), domain.ErrValidation, domain.ErrUnresolvedField)
		}
		c.count("deterministic")
		return Output{Query: node, Analysis: qa}, nil
	}

	llmNode, err := c.esc.CompileQuery(ctx, queryText, fieldNames)
	if err != nil {
		c.count("degraded")
		c.logger.Warn("LLM compiler failed, using deterministic query",
			zap.String("query", queryText),
			zap.Float64("confidence", qa.Confidence()),
			zap.Error(err))
		return Output{Query: node, Analysis: qa, Degraded: true}, nil
	}

	c.count("escalated")
	return Output{Query: llmNode, Analysis: qa, Escalated: true}, nil
}

// Build assembles the deterministic query tree. Same (queryText, analysis,
// template) always yields an identical tree. Returned alongside is the list
// of filter tokens that could not be resolved to any concrete field; their
// clauses are omitted from the tree.
func (c *Compiler) Build(
	queryText string, qa analysis.QueryAnalysis, tmpl *schema.TemplateContext,
) (query.Node, []string) {
	if qa.QueryType() == analysis.TypeExact {
		return query.MatchPhrase{Field: c.contentField(tmpl), Value: trimQuotes(queryText)}, nil
	}
	if qa.RequiresFullText() {
		return c.fullTextNode(queryText, tmpl), nil
	}

	var b query.Bool
	var unresolved []string

	for _, term := range qa.Terms() {
		b.Must = append(b.Must, c.textMatchNode(term, tmpl))
	}

	for _, f := range qa.Filters() {
		node, token, ok := c.filterNode(f, tmpl)
		if !ok {
			unresolved = append(unresolved, token)
			continue
		}
		b.Filter = append(b.Filter, node)
	}

	if len(b.Must) == 0 && len(b.Filter) == 0 {
		return c.fullTextNode(queryText, tmpl), unresolved
	}
	return b, unresolved
}

// ResolveAggregations expands the analysis aggregations into concrete
// per-field requests. A semantic field that resolves to nothing is a hard
// validation error, never an empty result.
func (c *Compiler) ResolveAggregations(
	qa analysis.QueryAnalysis, tmpl *schema.TemplateContext,
) ([]Aggregation, error) {
	var out []Aggregation
	for _, spec := range qa.Aggregations() {
		if spec.Field == "" {
			// Document count needs no field.
			out = append(out, Aggregation{Name: string(spec.Type), Type: spec.Type})
			continue
		}
		fields, err := c.resolver.ResolveStrict(spec.Field, tmpl)
		if err != nil {
			return nil, fmt.Errorf("aggregation on %q: %w: %w", spec.Field, domain.ErrValidation, err)
		}
		for _, f := range fields {
			if tmpl != nil {
				if info, ok := tmpl.Fields[f]; ok && !schema.Supports(info.Type, spec.Type) {
					return nil, fmt.Errorf("aggregation %s on %s field %q: %w",
						spec.Type, info.Type, f, domain.ErrValidation)
				}
			}
			out = append(out, Aggregation{
				Name:  fmt.Sprintf("%s_%s", spec.Type, f),
				Field: f,
				Type:  spec.Type,
			})
		}
	}
	return out, nil
}

// filterNode converts one FilterSpec into a query clause, resolving
// semantic fields and expanding them into should-disjunctions.
func (c *Compiler) filterNode(
	f analysis.FilterSpec, tmpl *schema.TemplateContext,
) (query.Node, string, bool) {
	switch f.Kind() {
	case analysis.KindPhrase:
		return query.MatchPhrase{Field: c.contentField(tmpl), Value: f.Value()}, "", true

	case analysis.KindRange:
		fields := c.resolver.Resolve(f.Field(), tmpl)
		if len(fields) == 0 {
			return nil, f.Field(), false
		}
		node := resolveExpand(fields, func(field string) query.Node {
			r := query.Range{Field: field}
			if f.GTE() != nil {
				r.GTE = *f.GTE()
			}
			if f.LTE() != nil {
				r.LTE = *f.LTE()
			}
			return r
		})
		return node, "", true

	case analysis.KindDateRange:
		fields := c.resolver.Resolve(f.Field(), tmpl)
		if len(fields) == 0 {
			return nil, f.Field(), false
		}
		gte, lte := f.DateBounds()
		if f.Keyword() != "" {
			var err error
			gte, lte, err = analysis.DateBounds(f.Keyword(), f.Days(), c.now())
			if err != nil {
				return nil, f.Field(), false
			}
		}
		node := resolveExpand(fields, func(field string) query.Node {
			r := query.Range{Field: field}
			if gte != "" {
				r.GTE = gte
			}
			if lte != "" {
				r.LTE = lte
			}
			return r
		})
		return node, "", true

	case analysis.KindTerm:
		fields := c.resolver.Resolve(f.Field(), tmpl)
		if len(fields) == 0 {
			return nil, f.Field(), false
		}
		node := resolveExpand(fields, func(field string) query.Node {
			return query.Term{Field: field, Value: f.Value()}
		})
		return node, "", true
	}
	return nil, f.Field(), false
}

func (c *Compiler) fullTextNode(text string, tmpl *schema.TemplateContext) query.Node {
	if tmpl != nil {
		if fields := tmpl.TextFields(); len(fields) > 0 {
			return query.MultiMatch{Fields: fields, Value: text}
		}
	}
	return query.Match{Field: c.contentField(tmpl), Value: text}
}

func (c *Compiler) textMatchNode(term string, tmpl *schema.TemplateContext) query.Node {
	if tmpl != nil {
		if fields := tmpl.TextFields(); len(fields) > 1 {
			return query.MultiMatch{Fields: fields, Value: term}
		} else if len(fields) == 1 {
			return query.Match{Field: fields[0], Value: term}
		}
	}
	return query.Match{Field: c.contentField(tmpl), Value: term}
}

func (c *Compiler) contentField(tmpl *schema.TemplateContext) string {
	if tmpl != nil {
		if fields := tmpl.TextFields(); len(fields) > 0 {
			return fields[0]
		}
	}
	return defaultContentField
}

func (c *Compiler) count(outcome string) {
	if c.outcomes != nil {
		c.outcomes.WithLabelValues(outcome).Inc()
	}
}

// resolveExpand builds a single leaf or a should-disjunction with
// minimum_should_match=1 over multiple concrete fields.
func resolveExpand(fields []string, leaf func(field string) query.Node) query.Node {
	if len(fields) == 1 {
		return leaf(fields[0])
	}
	should := make([]query.Node, 0, len(fields))
	for _, f := range fields {
		should = append(should, leaf(f))
	}
	return query.Bool{Should: should, MinimumShouldMatch: 1}
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
