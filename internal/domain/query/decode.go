package query

import (
	"encoding/json"
	"fmt"
)

// Decode parses an arbitrary compiled query tree, including trees produced
// by the LLM compiler. Recognized clause kinds become typed nodes; anything
// else is preserved as Foreign so round-tripping never loses data. Subtrees
// nested deeper than MaxDepth collapse to Foreign.
func Decode(data []byte) (Node, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode query tree: %w", err)
	}
	return FromMap(raw), nil
}

// FromMap converts a raw DSL map into a Node. It never fails: unrecognized
// shapes become Foreign nodes.
func FromMap(raw map[string]any) Node {
	return fromMap(raw, 0)
}

func fromMap(raw map[string]any, depth int) Node {
	if raw == nil {
		return Foreign{}
	}
	if depth >= MaxDepth {
		return Foreign{Raw: raw}
	}

	// A valid clause has exactly one top-level key naming its kind.
	if len(raw) != 1 {
		return Foreign{Raw: raw}
	}

	for kind, body := range raw {
		switch kind {
		case "bool":
			return decodeBool(body, depth)
		case "match":
			if f, v, ok := singleFieldString(body); ok {
				return Match{Field: f, Value: v}
			}
		case "match_phrase":
			if f, v, ok := singleFieldString(body); ok {
				return MatchPhrase{Field: f, Value: v}
			}
		case "term":
			if f, v, ok := singleField(body); ok {
				return Term{Field: f, Value: v}
			}
		case "range":
			if n, ok := decodeRange(body); ok {
				return n
			}
		case "exists":
			if m, ok := body.(map[string]any); ok {
				if f, ok := m["field"].(string); ok {
					return Exists{Field: f}
				}
			}
		case "prefix":
			if f, v, ok := singleFieldString(body); ok {
				return Prefix{Field: f, Value: v}
			}
		case "multi_match":
			if n, ok := decodeMultiMatch(body); ok {
				return n
			}
		case "query_string":
			if n, ok := decodeQueryString(body); ok {
				return n
			}
		case "match_all":
			return MatchAll{}
		}
	}
	return Foreign{Raw: raw}
}

func decodeBool(body any, depth int) Node {
	m, ok := body.(map[string]any)
	if !ok {
		return Foreign{Raw: map[string]any{"bool": body}}
	}
	b := Bool{
		Must:    decodeGroup(m["must"], depth+1),
		Should:  decodeGroup(m["should"], depth+1),
		Filter:  decodeGroup(m["filter"], depth+1),
		MustNot: decodeGroup(m["must_not"], depth+1),
	}
	switch v := m["minimum_should_match"].(type) {
	case float64:
		b.MinimumShouldMatch = int(v)
	case int:
		b.MinimumShouldMatch = v
	}
	return b
}

// decodeGroup accepts either a list of clauses or a single clause object,
// which some compilers emit for one-element groups.
func decodeGroup(v any, depth int) []Node {
	switch g := v.(type) {
	case []any:
		out := make([]Node, 0, len(g))
		for _, item := range g {
			if m, ok := item.(map[string]any); ok {
				out = append(out, fromMap(m, depth))
			}
		}
		return out
	case map[string]any:
		return []Node{fromMap(g, depth)}
	default:
		return nil
	}
}

func decodeRange(body any) (Node, bool) {
	m, ok := body.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, false
	}
	for field, bounds := range m {
		bm, ok := bounds.(map[string]any)
		if !ok {
			return nil, false
		}
		return Range{
			Field: field,
			GT:    bm["gt"],
			GTE:   bm["gte"],
			LT:    bm["lt"],
			LTE:   bm["lte"],
		}, true
	}
	return nil, false
}

func decodeMultiMatch(body any) (Node, bool) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}
	value, _ := m["query"].(string)
	fields := stringSlice(m["fields"])
	if value == "" && len(fields) == 0 {
		return nil, false
	}
	return MultiMatch{Fields: fields, Value: value}, true
}

func decodeQueryString(body any) (Node, bool) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}
	q, _ := m["query"].(string)
	if q == "" {
		return nil, false
	}
	return QueryString{Fields: stringSlice(m["fields"]), Query: q}, true
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func singleField(body any) (string, any, bool) {
	m, ok := body.(map[string]any)
	if !ok || len(m) == 0 {
		return "", nil, false
	}
	// Ignore option keys like "boost"; take the first non-option entry.
	for k, v := range m {
		if k == "boost" || k == "case_insensitive" {
			continue
		}
		// {"field": {"value": x}} long form
		if inner, ok := v.(map[string]any); ok {
			if val, present := inner["value"]; present {
				return k, val, true
			}
			if val, present := inner["query"]; present {
				return k, val, true
			}
			return "", nil, false
		}
		return k, v, true
	}
	return "", nil, false
}

func singleFieldString(body any) (string, string, bool) {
	f, v, ok := singleField(body)
	if !ok {
		return "", "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", "", false
	}
	return f, s, true
}
