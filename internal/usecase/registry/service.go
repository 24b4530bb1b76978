// Package registry maintains the canonical field mappings with a
// read-mostly in-memory cache over persistent storage.
package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/mapping"
)

// snapshot is an immutable view of the active mappings. Readers load it via
// atomic.Value; refreshes build a new snapshot and swap the reference, so a
// reader never observes a half-populated cache.
type snapshot struct {
	byName      map[string]mapping.Mapping
	aliasToName map[string]string
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byName:      map[string]mapping.Mapping{},
		aliasToName: map[string]string{},
	}
}

// Registry resolves canonical field names and aliases and owns their
// administration. Reads are lock-free; mutations are serialized.
type Registry struct {
	repo      Repository
	logger    *zap.Logger
	refreshes prometheus.Counter

	mu    sync.Mutex // serializes mutations and refreshes
	cache atomic.Value
}

// New creates a Registry with an empty cache. Call RefreshCache to populate
// it from storage. refreshes may be nil.
func New(repo Repository, refreshes prometheus.Counter, logger *zap.Logger) *Registry {
	r := &Registry{repo: repo, logger: logger, refreshes: refreshes}
	r.cache.Store(emptySnapshot())
	return r
}

func (r *Registry) snap() *snapshot {
	return r.cache.Load().(*snapshot)
}

// RefreshCache reloads every mapping from storage and atomically swaps the
// in-memory snapshot. On load failure the cache degrades to empty so field
// resolution fails open to pattern inference.
func (r *Registry) RefreshCache(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.repo.LoadAll(ctx)
	if err != nil {
		r.cache.Store(emptySnapshot())
		r.logger.Warn("Canonical field cache reload failed, degrading to empty",
			zap.Error(err))
		return fmt.Errorf("reload canonical mappings: %w", err)
	}

	next := emptySnapshot()
	for _, m := range all {
		if !m.IsActive() {
			continue
		}
		next.byName[m.CanonicalName()] = m
		for _, a := range m.Aliases() {
			next.aliasToName[a] = m.CanonicalName()
		}
	}
	r.cache.Store(next)
	if r.refreshes != nil {
		r.refreshes.Inc()
	}
	r.logger.Info("Canonical field cache refreshed",
		zap.Int("mappings", len(next.byName)),
		zap.Int("aliases", len(next.aliasToName)))
	return nil
}

// ResolveCanonicalName resolves a canonical name or alias to the canonical
// name. Alias-to-canonical is total: an alias belongs to exactly one active
// mapping.
func (r *Registry) ResolveCanonicalName(nameOrAlias string) (string, bool) {
	s := r.snap()
	if _, ok := s.byName[nameOrAlias]; ok {
		return nameOrAlias, true
	}
	if canonical, ok := s.aliasToName[nameOrAlias]; ok {
		return canonical, true
	}
	return "", false
}

// GetMapping returns the active mapping for a canonical name or alias.
func (r *Registry) GetMapping(nameOrAlias string) (mapping.Mapping, bool) {
	canonical, ok := r.ResolveCanonicalName(nameOrAlias)
	if !ok {
		return mapping.Mapping{}, false
	}
	m, ok := r.snap().byName[canonical]
	return m, ok
}

// ExpandForTemplate returns the concrete field name a template uses for the
// canonical category.
func (r *Registry) ExpandForTemplate(nameOrAlias, template string) (string, error) {
	m, ok := r.GetMapping(nameOrAlias)
	if !ok {
		return "", fmt.Errorf("canonical field %q: %w", nameOrAlias, domain.ErrNotFound)
	}
	field, ok := m.FieldFor(template)
	if !ok {
		return "", fmt.Errorf("template %q for %q: %w", template, nameOrAlias, domain.ErrTemplateUnknown)
	}
	return field, nil
}

// ExpandAllTemplates returns every template-to-field binding for the
// canonical category.
func (r *Registry) ExpandAllTemplates(nameOrAlias string) (map[string]string, error) {
	m, ok := r.GetMapping(nameOrAlias)
	if !ok {
		return nil, fmt.Errorf("canonical field %q: %w", nameOrAlias, domain.ErrNotFound)
	}
	return m.FieldMappings(), nil
}

// ListMappings returns the active mappings, for the administration surface.
func (r *Registry) ListMappings() []mapping.Mapping {
	s := r.snap()
	out := make([]mapping.Mapping, 0, len(s.byName))
	for _, m := range s.byName {
		out = append(out, m)
	}
	return out
}

// CreateMapping persists a new mapping and publishes it to the cache.
func (r *Registry) CreateMapping(ctx context.Context, m mapping.Mapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.snap()
	if _, exists := s.byName[m.CanonicalName()]; exists {
		return fmt.Errorf("canonical field %q already exists: %w",
			m.CanonicalName(), domain.ErrValidation)
	}
	for _, alias := range m.Aliases() {
		if owner, taken := r.aliasOwner(s, alias); taken {
			return domain.NewDuplicateAlias(alias, owner)
		}
	}

	if err := r.repo.Save(ctx, m); err != nil {
		return fmt.Errorf("save mapping %q: %w", m.CanonicalName(), err)
	}
	r.publish(s, m)
	return nil
}

// UpdateMapping replaces the template bindings of a user mapping.
// System mappings are read-only.
func (r *Registry) UpdateMapping(
	ctx context.Context, nameOrAlias string,
	fieldMappings map[string]string, aggregation analysis.AggregationType,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.snap()
	m, ok := r.lookup(s, nameOrAlias)
	if !ok {
		return fmt.Errorf("canonical field %q: %w", nameOrAlias, domain.ErrNotFound)
	}
	if m.IsSystem() {
		return fmt.Errorf("update %q: %w", m.CanonicalName(), domain.ErrSystemMapping)
	}

	updated, err := m.WithFieldMappings(fieldMappings, aggregation)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err := r.repo.Save(ctx, updated); err != nil {
		return fmt.Errorf("save mapping %q: %w", updated.CanonicalName(), err)
	}
	r.publish(s, updated)
	return nil
}

// DeleteMapping soft-deletes a user mapping: it stays in storage with
// isActive=false and disappears from resolution.
func (r *Registry) DeleteMapping(ctx context.Context, nameOrAlias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.snap()
	m, ok := r.lookup(s, nameOrAlias)
	if !ok {
		return fmt.Errorf("canonical field %q: %w", nameOrAlias, domain.ErrNotFound)
	}
	if m.IsSystem() {
		return fmt.Errorf("delete %q: %w", m.CanonicalName(), domain.ErrSystemMapping)
	}

	deleted := m.Deactivated()
	if err := r.repo.Save(ctx, deleted); err != nil {
		return fmt.Errorf("save mapping %q: %w", deleted.CanonicalName(), err)
	}
	r.unpublish(s, m)
	return nil
}

// AddAlias attaches an alias to a mapping. An alias must be unique across
// all active mappings.
func (r *Registry) AddAlias(ctx context.Context, nameOrAlias, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.snap()
	m, ok := r.lookup(s, nameOrAlias)
	if !ok {
		return fmt.Errorf("canonical field %q: %w", nameOrAlias, domain.ErrNotFound)
	}
	if owner, taken := r.aliasOwner(s, alias); taken {
		return domain.NewDuplicateAlias(alias, owner)
	}
	if _, shadows := s.byName[alias]; shadows {
		return domain.NewDuplicateAlias(alias, alias)
	}

	updated, err := m.WithAlias(alias)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err := r.repo.Save(ctx, updated); err != nil {
		return fmt.Errorf("save mapping %q: %w", updated.CanonicalName(), err)
	}
	r.publish(s, updated)
	return nil
}

// RemoveAlias detaches an alias from whichever mapping owns it.
func (r *Registry) RemoveAlias(ctx context.Context, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.snap()
	canonical, ok := s.aliasToName[alias]
	if !ok {
		return fmt.Errorf("alias %q: %w", alias, domain.ErrNotFound)
	}
	m := s.byName[canonical]

	updated := m.WithoutAlias(alias)
	if err := r.repo.Save(ctx, updated); err != nil {
		return fmt.Errorf("save mapping %q: %w", updated.CanonicalName(), err)
	}
	r.publish(s, updated)
	return nil
}

// lookup resolves against a specific snapshot (mutation path).
func (r *Registry) lookup(s *snapshot, nameOrAlias string) (mapping.Mapping, bool) {
	if m, ok := s.byName[nameOrAlias]; ok {
		return m, true
	}
	if canonical, ok := s.aliasToName[nameOrAlias]; ok {
		m, ok := s.byName[canonical]
		return m, ok
	}
	return mapping.Mapping{}, false
}

func (r *Registry) aliasOwner(s *snapshot, alias string) (string, bool) {
	owner, ok := s.aliasToName[alias]
	return owner, ok
}

// publish swaps in a new snapshot with m replacing its previous version.
func (r *Registry) publish(prev *snapshot, m mapping.Mapping) {
	next := rebuildWithout(prev, m.CanonicalName())
	next.byName[m.CanonicalName()] = m
	for _, a := range m.Aliases() {
		next.aliasToName[a] = m.CanonicalName()
	}
	r.cache.Store(next)
}

// unpublish swaps in a new snapshot with m removed.
func (r *Registry) unpublish(prev *snapshot, m mapping.Mapping) {
	r.cache.Store(rebuildWithout(prev, m.CanonicalName()))
}

func rebuildWithout(prev *snapshot, canonical string) *snapshot {
	next := &snapshot{
		byName:      make(map[string]mapping.Mapping, len(prev.byName)+1),
		aliasToName: make(map[string]string, len(prev.aliasToName)+1),
	}
	for name, m := range prev.byName {
		if name == canonical {
			continue
		}
		next.byName[name] = m
	}
	for alias, owner := range prev.aliasToName {
		if owner == canonical {
			continue
		}
		next.aliasToName[alias] = owner
	}
	return next
}
