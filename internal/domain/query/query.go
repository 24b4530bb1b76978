// Package query defines the compiled query tree sent to the search backend.
//
// The tree is a tagged-variant AST: a Bool node with must/should/filter/
// must_not groups, or one of a small set of leaf clauses. Both the query
// builder and the field lineage extractor operate on the same AST through
// Walk, so what the builder emits is exactly what the extractor can audit.
package query

import "encoding/json"

// MaxDepth is the maximum nesting depth honored by Walk and Decode.
// Subtrees below this depth are ignored rather than rejected.
const MaxDepth = 10

// Node is a single clause in a compiled query tree.
type Node interface {
	isNode()
}

// Bool combines sub-clauses with boolean semantics.
type Bool struct {
	Must               []Node
	Should             []Node
	Filter             []Node
	MustNot            []Node
	MinimumShouldMatch int
}

// Match is a full-text match on a single field.
type Match struct {
	Field string
	Value string
}

// MatchPhrase is an exact phrase match on a single field.
type MatchPhrase struct {
	Field string
	Value string
}

// Term is an exact value match on a single field.
type Term struct {
	Field string
	Value any
}

// Range constrains a field to numeric or date bounds.
// Bound values may be float64 or ISO date strings; nil bounds are omitted.
type Range struct {
	Field string
	GT    any
	GTE   any
	LT    any
	LTE   any
}

// Exists matches documents where the field is present.
type Exists struct {
	Field string
}

// Prefix matches values beginning with the given prefix.
type Prefix struct {
	Field string
	Value string
}

// MultiMatch is a full-text match across several fields.
// Fields may carry boost suffixes such as "title^2".
type MultiMatch struct {
	Fields []string
	Value  string
}

// QueryString is a query-string clause across several fields.
type QueryString struct {
	Fields []string
	Query  string
}

// MatchAll matches every document.
type MatchAll struct{}

// Foreign preserves a subtree the decoder did not recognize.
// It marshals back verbatim and is skipped by the lineage extractor.
type Foreign struct {
	Raw map[string]any
}

func (Bool) isNode()        {}
func (Match) isNode()       {}
func (MatchPhrase) isNode() {}
func (Term) isNode()        {}
func (Range) isNode()       {}
func (Exists) isNode()      {}
func (Prefix) isNode()      {}
func (MultiMatch) isNode()  {}
func (QueryString) isNode() {}
func (MatchAll) isNode()    {}
func (Foreign) isNode()     {}

// ToMap renders a node as the backend's boolean DSL tree.
func ToMap(n Node) map[string]any {
	switch q := n.(type) {
	case Bool:
		b := map[string]any{}
		if len(q.Must) > 0 {
			b["must"] = groupToMaps(q.Must)
		}
		if len(q.Should) > 0 {
			b["should"] = groupToMaps(q.Should)
		}
		if len(q.Filter) > 0 {
			b["filter"] = groupToMaps(q.Filter)
		}
		if len(q.MustNot) > 0 {
			b["must_not"] = groupToMaps(q.MustNot)
		}
		if q.MinimumShouldMatch > 0 {
			b["minimum_should_match"] = q.MinimumShouldMatch
		}
		return map[string]any{"bool": b}
	case Match:
		return map[string]any{"match": map[string]any{q.Field: q.Value}}
	case MatchPhrase:
		return map[string]any{"match_phrase": map[string]any{q.Field: q.Value}}
	case Term:
		return map[string]any{"term": map[string]any{q.Field: q.Value}}
	case Range:
		bounds := map[string]any{}
		if q.GT != nil {
			bounds["gt"] = q.GT
		}
		if q.GTE != nil {
			bounds["gte"] = q.GTE
		}
		if q.LT != nil {
			bounds["lt"] = q.LT
		}
		if q.LTE != nil {
			bounds["lte"] = q.LTE
		}
		return map[string]any{"range": map[string]any{q.Field: bounds}}
	case Exists:
		return map[string]any{"exists": map[string]any{"field": q.Field}}
	case Prefix:
		return map[string]any{"prefix": map[string]any{q.Field: q.Value}}
	case MultiMatch:
		return map[string]any{"multi_match": map[string]any{
			"query":  q.Value,
			"fields": q.Fields,
		}}
	case QueryString:
		m := map[string]any{"query": q.Query}
		if len(q.Fields) > 0 {
			m["fields"] = q.Fields
		}
		return map[string]any{"query_string": m}
	case MatchAll:
		return map[string]any{"match_all": map[string]any{}}
	case Foreign:
		return q.Raw
	default:
		return map[string]any{}
	}
}

// Marshal renders a node as the JSON tree accepted by the search backend.
func Marshal(n Node) ([]byte, error) {
	return json.Marshal(ToMap(n))
}

func groupToMaps(nodes []Node) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ToMap(n))
	}
	return out
}
