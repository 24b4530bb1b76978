// Package lineage recovers the set of fields a compiled query references.
//
// It is the inverse of the query builder, but must stay correct for trees
// the builder never produced: LLM-compiled queries flow through the same
// extractor so the audit layer can scope results by touched fields.
package lineage

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/querydex/internal/domain/query"
)

// syntheticPrefix marks backend-internal fields (content, vectors, scores).
const syntheticPrefix = "__"

// syntheticFieldSet lists backend metadata fields that are not document data.
var syntheticFieldSet = map[string]struct{}{
	"_id": {}, "_score": {}, "_index": {}, "_source": {}, "_all": {},
}

// Result partitions the referenced fields and records per-field clause
// contexts. Recomputed fresh for every compiled query, never persisted.
type Result struct {
	realFields      map[string]struct{}
	syntheticFields map[string]struct{}
	contexts        map[string]map[string]struct{}
}

// RealFields returns the referenced document fields, sorted.
func (r Result) RealFields() []string { return sortedKeys(r.realFields) }

// SyntheticFields returns the referenced backend-internal fields, sorted.
func (r Result) SyntheticFields() []string { return sortedKeys(r.syntheticFields) }

// Contexts returns the deduplicated clause contexts for a field, sorted.
func (r Result) Contexts(field string) []string {
	return sortedKeys(r.contexts[field])
}

// HasReal reports whether the field appears as a real document field.
func (r Result) HasReal(field string) bool {
	_, ok := r.realFields[field]
	return ok
}

// Extract walks a compiled query tree and records every referenced field.
// It never fails: malformed or foreign subtrees contribute nothing, because
// partial lineage is more useful than none for audit filtering. Traversal
// depth is bounded by query.MaxDepth.
func Extract(n query.Node) Result {
	res := Result{
		realFields:      map[string]struct{}{},
		syntheticFields: map[string]struct{}{},
		contexts:        map[string]map[string]struct{}{},
	}
	if n == nil {
		return res
	}

	query.Walk(n, func(node query.Node, path []query.Clause) {
		clause := clauseOf(path)
		switch q := node.(type) {
		case query.Match:
			res.record(q.Field, clause, "match")
		case query.MatchPhrase:
			res.record(q.Field, clause, "match_phrase")
		case query.Term:
			res.record(q.Field, clause, "term")
		case query.Range:
			res.record(q.Field, clause, "range")
		case query.Exists:
			res.record(q.Field, clause, "exists")
		case query.Prefix:
			res.record(q.Field, clause, "prefix")
		case query.MultiMatch:
			for _, f := range q.Fields {
				res.record(normalizeField(f), clause, "multi_match")
			}
		case query.QueryString:
			for _, f := range q.Fields {
				res.record(normalizeField(f), clause, "query_string")
			}
		case query.Bool, query.MatchAll, query.Foreign:
			// Bool is structure, match_all touches nothing, and
			// foreign subtrees carry no recoverable fields.
		}
	})
	return res
}

func (r *Result) record(field string, clause query.Clause, kind string) {
	if field == "" {
		return
	}
	if isSynthetic(field) {
		r.syntheticFields[field] = struct{}{}
	} else {
		r.realFields[field] = struct{}{}
	}

	tag := string(clause) + ":" + kind
	if r.contexts[field] == nil {
		r.contexts[field] = map[string]struct{}{}
	}
	r.contexts[field][tag] = struct{}{}
}

// clauseOf returns the innermost bool group a node sits in, or "query" for
// a root-level leaf.
func clauseOf(path []query.Clause) query.Clause {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] != query.ClauseRoot {
			return path[i]
		}
	}
	return "query"
}

func isSynthetic(field string) bool {
	if strings.HasPrefix(field, syntheticPrefix) {
		return true
	}
	_, ok := syntheticFieldSet[field]
	return ok
}

// normalizeField strips boost ("field^2") and wildcard suffix notation.
func normalizeField(field string) string {
	if idx := strings.Index(field, "^"); idx >= 0 {
		field = field[:idx]
	}
	field = strings.TrimSuffix(field, ".*")
	field = strings.TrimSuffix(field, "*")
	return field
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
