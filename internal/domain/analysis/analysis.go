// Package analysis holds the result of heuristic query text analysis.
package analysis

import "fmt"

// Intent is the classified purpose of a query.
type Intent string

// Intent values.
const (
	IntentRetrieve  Intent = "retrieve"
	IntentFilter    Intent = "filter"
	IntentAggregate Intent = "aggregate"
	IntentCompare   Intent = "compare"
)

// IsValid reports whether the intent is a known value.
func (i Intent) IsValid() bool {
	switch i {
	case IntentRetrieve, IntentFilter, IntentAggregate, IntentCompare:
		return true
	}
	return false
}

// QueryType selects the match semantics of the compiled query.
type QueryType string

// QueryType values.
const (
	TypeExact    QueryType = "exact"
	TypeFullText QueryType = "fulltext"
	TypeHybrid   QueryType = "hybrid"
)

// SortDirection orders results.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort describes a requested result ordering.
type Sort struct {
	Field     string
	Direction SortDirection
}

// QueryAnalysis is the immutable output of the intent classifier and filter
// extractor, consumed once by the arbitration gate and query builder.
type QueryAnalysis struct {
	intent           Intent
	confidence       float64
	filters          []FilterSpec
	aggregations     []AggregationSpec
	queryType        QueryType
	requiresFullText bool
	sort             *Sort
	terms            []string
}

// New validates and creates a QueryAnalysis. Confidence is clamped to [0,1].
func New(
	intent Intent,
	confidence float64,
	filters []FilterSpec,
	aggregations []AggregationSpec,
	queryType QueryType,
	requiresFullText bool,
	sort *Sort,
	terms []string,
) (QueryAnalysis, error) {
	if !intent.IsValid() {
		return QueryAnalysis{}, fmt.Errorf("invalid intent %q", intent)
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if queryType == "" {
		queryType = TypeHybrid
	}
	return QueryAnalysis{
		intent:           intent,
		confidence:       confidence,
		filters:          filters,
		aggregations:     aggregations,
		queryType:        queryType,
		requiresFullText: requiresFullText,
		sort:             sort,
		terms:            terms,
	}, nil
}

// Intent returns the classified intent.
func (a QueryAnalysis) Intent() Intent { return a.intent }

// Confidence returns the classification confidence in [0,1].
func (a QueryAnalysis) Confidence() float64 { return a.confidence }

// Filters returns the extracted filter specifications.
func (a QueryAnalysis) Filters() []FilterSpec { return a.filters }

// Aggregations returns the detected aggregation requests.
func (a QueryAnalysis) Aggregations() []AggregationSpec { return a.aggregations }

// QueryType returns the match semantics for the compiled query.
func (a QueryAnalysis) QueryType() QueryType { return a.queryType }

// RequiresFullText reports whether the query needs full-text matching.
func (a QueryAnalysis) RequiresFullText() bool { return a.requiresFullText }

// Sort returns the requested ordering, or nil.
func (a QueryAnalysis) Sort() *Sort { return a.sort }

// Terms returns the residual query terms left after filter extraction.
func (a QueryAnalysis) Terms() []string { return a.terms }
