// Package resolve turns semantic or literal field tokens into the concrete
// field names valid for whichever template a document uses.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/mapping"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
)

// RegistryReader is the consumer interface onto the canonical field registry.
type RegistryReader interface {
	ResolveCanonicalName(nameOrAlias string) (string, bool)
	GetMapping(nameOrAlias string) (mapping.Mapping, bool)
}

// categoryPatterns maps keyword fragments to canonical categories. The
// table order is the tie-break: the first category whose pattern matches
// wins, so "total" always resolves to amount even though a generic numeric
// category could also claim it.
var categoryPatterns = []struct {
	category string
	keywords []string
}{
	{"amount", []string{"total", "amount", "cost", "price", "sum", "value", "fee", "charge", "balance"}},
	{"entity_name", []string{"vendor", "client", "company", "customer", "supplier", "merchant", "payee", "seller"}},
	{"start_date", []string{"start", "begin", "effective", "issued"}},
	{"end_date", []string{"end", "due", "until", "expir"}},
	{"date", []string{"date", "when", "time", "day"}},
	{"status", []string{"status", "state"}},
}

// Resolver resolves field tokens through the registry with pattern-inference
// fallback. Stateless beyond the injected registry; safe for concurrent use.
type Resolver struct {
	reg RegistryReader
}

// New creates a Resolver.
func New(reg RegistryReader) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve returns the concrete field name(s) for a token. Literal template
// fields win, then registry mappings (name or alias), then pattern
// inference over the template's own fields. Returns nil when nothing fits.
func (r *Resolver) Resolve(token string, tmpl *schema.TemplateContext) []string {
	if token == "" {
		return nil
	}

	// Literal field of the template needs no resolution.
	if tmpl != nil {
		if _, ok := tmpl.Fields[token]; ok {
			return []string{token}
		}
	}

	if m, ok := r.reg.GetMapping(token); ok {
		if tmpl != nil {
			if field, ok := m.FieldFor(tmpl.Name); ok {
				return []string{field}
			}
		}
		if fields := m.AllFields(); len(fields) > 0 {
			return fields
		}
	}

	category, ok := InferCategory(token)
	if !ok {
		return nil
	}

	// The inferred category may itself have a registry entry.
	if category != token {
		if m, ok := r.reg.GetMapping(category); ok {
			if tmpl != nil {
				if field, ok := m.FieldFor(tmpl.Name); ok {
					return []string{field}
				}
			}
			if fields := m.AllFields(); len(fields) > 0 {
				return fields
			}
		}
	}

	if tmpl == nil {
		return nil
	}
	return matchTemplateFields(category, tmpl)
}

// ResolveStrict resolves a token and fails when nothing matches. Used by
// aggregation and comparison paths, where an unresolved semantic name must
// never reach the search backend.
func (r *Resolver) ResolveStrict(token string, tmpl *schema.TemplateContext) ([]string, error) {
	fields := r.Resolve(token, tmpl)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%q: %w", token, domain.ErrUnresolvedField)
	}
	return fields, nil
}

// InferCategory maps a token to a canonical category by keyword pattern.
// First match in table order wins.
func InferCategory(token string) (string, bool) {
	lower := strings.ToLower(token)
	for _, entry := range categoryPatterns {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category, true
			}
		}
	}
	return "", false
}

// matchTemplateFields finds template fields belonging to the category, by
// name pattern and, for date categories, by declared field type.
func matchTemplateFields(category string, tmpl *schema.TemplateContext) []string {
	var keywords []string
	for _, entry := range categoryPatterns {
		if entry.category == category {
			keywords = entry.keywords
			break
		}
	}

	seen := map[string]struct{}{}
	for name, info := range tmpl.Fields {
		lower := strings.ToLower(name)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				seen[name] = struct{}{}
				break
			}
		}
		if category == "date" && info.Type == schema.TypeDate {
			seen[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
