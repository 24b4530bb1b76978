package querydex

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	dommap "github.com/kailas-cloud/querydex/internal/domain/mapping"
	registryuc "github.com/kailas-cloud/querydex/internal/usecase/registry"
)

// FieldMapping is a canonical field category: one semantic name bound to
// concrete fields per template, plus aliases that resolve to it.
type FieldMapping struct {
	CanonicalName string
	// FieldMappings binds template name to the concrete field it uses.
	FieldMappings map[string]string
	Aggregation   string
	Aliases       []string
	IsSystem      bool
}

// FieldsService administers the canonical field registry.
type FieldsService struct {
	reg *registryuc.Registry
}

// Create registers a new canonical field category.
func (s *FieldsService) Create(ctx context.Context, fm FieldMapping) error {
	m, err := dommap.New(
		fm.CanonicalName, fm.FieldMappings,
		analysis.AggregationType(fm.Aggregation), fm.Aliases, false,
	)
	if err != nil {
		return fmt.Errorf("create field %q: %w", fm.CanonicalName, err)
	}
	if err := s.reg.CreateMapping(ctx, m); err != nil {
		return fmt.Errorf("create field %q: %w", fm.CanonicalName, err)
	}
	return nil
}

// Get returns the mapping for a canonical name or alias.
func (s *FieldsService) Get(_ context.Context, nameOrAlias string) (FieldMapping, bool) {
	m, ok := s.reg.GetMapping(nameOrAlias)
	if !ok {
		return FieldMapping{}, false
	}
	return fromInternalMapping(m), true
}

// List returns all active mappings sorted by canonical name.
func (s *FieldsService) List(_ context.Context) []FieldMapping {
	all := s.reg.ListMappings()
	out := make([]FieldMapping, len(all))
	for i, m := range all {
		out[i] = fromInternalMapping(m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalName < out[j].CanonicalName })
	return out
}

// Update replaces the template bindings of a user mapping.
func (s *FieldsService) Update(
	ctx context.Context, nameOrAlias string,
	fieldMappings map[string]string, aggregation string,
) error {
	if err := s.reg.UpdateMapping(ctx, nameOrAlias, fieldMappings,
		analysis.AggregationType(aggregation)); err != nil {
		return fmt.Errorf("update field %q: %w", nameOrAlias, err)
	}
	return nil
}

// Delete soft-deletes a user mapping.
func (s *FieldsService) Delete(ctx context.Context, nameOrAlias string) error {
	if err := s.reg.DeleteMapping(ctx, nameOrAlias); err != nil {
		return fmt.Errorf("delete field %q: %w", nameOrAlias, err)
	}
	return nil
}

// AddAlias attaches an alias to a mapping.
func (s *FieldsService) AddAlias(ctx context.Context, nameOrAlias, alias string) error {
	if err := s.reg.AddAlias(ctx, nameOrAlias, alias); err != nil {
		return fmt.Errorf("add alias %q: %w", alias, err)
	}
	return nil
}

// RemoveAlias detaches an alias from whichever mapping owns it.
func (s *FieldsService) RemoveAlias(ctx context.Context, alias string) error {
	if err := s.reg.RemoveAlias(ctx, alias); err != nil {
		return fmt.Errorf("remove alias %q: %w", alias, err)
	}
	return nil
}

// Resolve returns the canonical name for a name or alias.
func (s *FieldsService) Resolve(_ context.Context, nameOrAlias string) (string, bool) {
	return s.reg.ResolveCanonicalName(nameOrAlias)
}

func fromInternalMapping(m dommap.Mapping) FieldMapping {
	return FieldMapping{
		CanonicalName: m.CanonicalName(),
		FieldMappings: m.FieldMappings(),
		Aggregation:   string(m.Aggregation()),
		Aliases:       m.Aliases(),
		IsSystem:      m.IsSystem(),
	}
}
