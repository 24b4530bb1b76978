// Package schema holds the shapes supplied by the schema metadata provider:
// per-template field lists with types, aliases and extraction hints.
package schema

import (
	"sort"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
)

// FieldType is the declared type of an extracted field.
type FieldType string

// Field types.
const (
	TypeText    FieldType = "text"
	TypeKeyword FieldType = "keyword"
	TypeNumber  FieldType = "number"
	TypeDate    FieldType = "date"
	TypeBool    FieldType = "bool"
)

// FieldInfo describes one field of a template.
type FieldInfo struct {
	Type    FieldType
	Aliases []string
	Hints   []string
}

// TemplateContext is the field metadata for one template.
type TemplateContext struct {
	Name          string
	Fields        map[string]FieldInfo
	AllFieldNames []string
}

// FieldNames returns AllFieldNames, deriving it (sorted) from Fields when
// empty.
func (t TemplateContext) FieldNames() []string {
	if len(t.AllFieldNames) > 0 {
		return t.AllFieldNames
	}
	names := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TextFields returns the names of text-bearing fields, sorted so query
// construction stays deterministic.
func (t TemplateContext) TextFields() []string {
	out := make([]string, 0, len(t.Fields))
	for name, info := range t.Fields {
		if info.Type == TypeText || info.Type == TypeKeyword {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Capabilities returns the aggregation types valid for a field type.
// Computed once from metadata; replaces runtime trial-and-error probing.
func Capabilities(ft FieldType) []analysis.AggregationType {
	switch ft {
	case TypeNumber:
		return []analysis.AggregationType{
			analysis.AggSum, analysis.AggAvg, analysis.AggMin,
			analysis.AggMax, analysis.AggCount, analysis.AggCardinality,
		}
	case TypeDate:
		return []analysis.AggregationType{
			analysis.AggMin, analysis.AggMax, analysis.AggCount,
			analysis.AggCardinality, analysis.AggDateHistogram,
		}
	case TypeKeyword, TypeBool:
		return []analysis.AggregationType{
			analysis.AggCount, analysis.AggCardinality, analysis.AggTerms,
		}
	case TypeText:
		return []analysis.AggregationType{analysis.AggCount}
	default:
		return nil
	}
}

// Supports reports whether the field type allows the aggregation.
func Supports(ft FieldType, agg analysis.AggregationType) bool {
	for _, a := range Capabilities(ft) {
		if a == agg {
			return true
		}
	}
	return false
}
