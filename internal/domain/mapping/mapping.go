// Package mapping defines the canonical field mapping entity: a semantic
// category name bound to the concrete field name each template uses for it.
package mapping

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
)

// MaxAliases bounds the alias set per mapping.
const MaxAliases = 32

// Mapping binds a canonical field name to per-template concrete fields.
type Mapping struct {
	canonicalName string
	fieldMappings map[string]string
	aggregation   analysis.AggregationType
	aliases       map[string]struct{}
	isSystem      bool
	isActive      bool
}

// New validates and creates an active Mapping.
func New(
	canonicalName string,
	fieldMappings map[string]string,
	aggregation analysis.AggregationType,
	aliases []string,
	isSystem bool,
) (Mapping, error) {
	if canonicalName == "" {
		return Mapping{}, fmt.Errorf("canonical name is required")
	}
	if len(aliases) > MaxAliases {
		return Mapping{}, fmt.Errorf("too many aliases (max %d)", MaxAliases)
	}
	for template, field := range fieldMappings {
		if template == "" || field == "" {
			return Mapping{}, fmt.Errorf("empty template or field in mappings for %q", canonicalName)
		}
	}
	aliasSet := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		if a == "" {
			return Mapping{}, fmt.Errorf("empty alias for %q", canonicalName)
		}
		if a == canonicalName {
			return Mapping{}, fmt.Errorf("alias %q shadows its own canonical name", a)
		}
		aliasSet[a] = struct{}{}
	}
	fm := make(map[string]string, len(fieldMappings))
	for k, v := range fieldMappings {
		fm[k] = v
	}
	return Mapping{
		canonicalName: canonicalName,
		fieldMappings: fm,
		aggregation:   aggregation,
		aliases:       aliasSet,
		isSystem:      isSystem,
		isActive:      true,
	}, nil
}

// Reconstruct creates a Mapping without validation (storage hydration).
func Reconstruct(
	canonicalName string,
	fieldMappings map[string]string,
	aggregation analysis.AggregationType,
	aliases []string,
	isSystem, isActive bool,
) Mapping {
	aliasSet := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		aliasSet[a] = struct{}{}
	}
	return Mapping{
		canonicalName: canonicalName,
		fieldMappings: fieldMappings,
		aggregation:   aggregation,
		aliases:       aliasSet,
		isSystem:      isSystem,
		isActive:      isActive,
	}
}

// CanonicalName returns the unique canonical field name.
func (m Mapping) CanonicalName() string { return m.canonicalName }

// FieldFor returns the concrete field name for a template.
func (m Mapping) FieldFor(template string) (string, bool) {
	f, ok := m.fieldMappings[template]
	return f, ok
}

// FieldMappings returns a copy of the template-to-field map.
func (m Mapping) FieldMappings() map[string]string {
	out := make(map[string]string, len(m.fieldMappings))
	for k, v := range m.fieldMappings {
		out[k] = v
	}
	return out
}

// AllFields returns the deduplicated concrete field names, sorted.
func (m Mapping) AllFields() []string {
	seen := make(map[string]struct{}, len(m.fieldMappings))
	for _, f := range m.fieldMappings {
		seen[f] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Aggregation returns the default aggregation type for the category.
func (m Mapping) Aggregation() analysis.AggregationType { return m.aggregation }

// Aliases returns the alias set, sorted.
func (m Mapping) Aliases() []string {
	out := make([]string, 0, len(m.aliases))
	for a := range m.aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// HasAlias reports whether the mapping owns the alias.
func (m Mapping) HasAlias(alias string) bool {
	_, ok := m.aliases[alias]
	return ok
}

// IsSystem reports whether the mapping came from seed data.
func (m Mapping) IsSystem() bool { return m.isSystem }

// IsActive reports whether the mapping is live (soft-delete flag).
func (m Mapping) IsActive() bool { return m.isActive }

// WithAlias returns a copy with the alias added.
func (m Mapping) WithAlias(alias string) (Mapping, error) {
	if alias == "" {
		return Mapping{}, fmt.Errorf("alias is required")
	}
	if alias == m.canonicalName {
		return Mapping{}, fmt.Errorf("alias %q shadows its own canonical name", alias)
	}
	if len(m.aliases) >= MaxAliases {
		return Mapping{}, fmt.Errorf("too many aliases (max %d)", MaxAliases)
	}
	c := m.clone()
	c.aliases[alias] = struct{}{}
	return c, nil
}

// WithoutAlias returns a copy with the alias removed.
func (m Mapping) WithoutAlias(alias string) Mapping {
	c := m.clone()
	delete(c.aliases, alias)
	return c
}

// WithFieldMappings returns a copy with replaced template mappings and
// aggregation type.
func (m Mapping) WithFieldMappings(
	fieldMappings map[string]string, aggregation analysis.AggregationType,
) (Mapping, error) {
	for template, field := range fieldMappings {
		if template == "" || field == "" {
			return Mapping{}, fmt.Errorf("empty template or field in mappings for %q", m.canonicalName)
		}
	}
	c := m.clone()
	c.fieldMappings = make(map[string]string, len(fieldMappings))
	for k, v := range fieldMappings {
		c.fieldMappings[k] = v
	}
	if aggregation != "" {
		c.aggregation = aggregation
	}
	return c, nil
}

// Deactivated returns a soft-deleted copy.
func (m Mapping) Deactivated() Mapping {
	c := m.clone()
	c.isActive = false
	return c
}

func (m Mapping) clone() Mapping {
	fm := make(map[string]string, len(m.fieldMappings))
	for k, v := range m.fieldMappings {
		fm[k] = v
	}
	as := make(map[string]struct{}, len(m.aliases))
	for a := range m.aliases {
		as[a] = struct{}{}
	}
	return Mapping{
		canonicalName: m.canonicalName,
		fieldMappings: fm,
		aggregation:   m.aggregation,
		aliases:       as,
		isSystem:      m.isSystem,
		isActive:      m.isActive,
	}
}
