package querydex

import (
	"context"
	"fmt"
)

// Template is a generic, schema-first handle over one document template.
// Field metadata is inferred from T's struct tags at construction time.
type Template[T any] struct {
	name   string
	client *Client
	meta   *templateMeta
}

// NewTemplate creates a typed template handle. T must be a struct with
// querydex tags. The schema is parsed once and cached.
func NewTemplate[T any](client *Client, name string) (*Template[T], error) {
	meta, err := parseTemplateSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new template %q: %w", name, err)
	}
	return &Template[T]{name: name, client: client, meta: meta}, nil
}

// Register persists the template field metadata so queries against this
// template resolve semantic tokens to its concrete fields (idempotent).
func (t *Template[T]) Register(ctx context.Context) error {
	if err := t.client.schemas.SaveTemplate(ctx, t.meta.toTemplateContext(t.name)); err != nil {
		return fmt.Errorf("register %q: %w", t.name, err)
	}
	return nil
}

// Fields returns the declared template fields.
func (t *Template[T]) Fields() []FieldDef {
	out := make([]FieldDef, len(t.meta.fields))
	copy(out, t.meta.fields)
	return out
}

// Search returns a fluent search builder for this template.
func (t *Template[T]) Search() *SearchBuilder[T] {
	return &SearchBuilder[T]{tmpl: t}
}

// ComparePeriods compares a metric across the given period and the one
// before it, scoped to this template.
func (t *Template[T]) ComparePeriods(
	ctx context.Context, metric, period string,
) (PeriodComparison, error) {
	return t.client.ComparePeriods(ctx, t.name, metric, period)
}

// CompareGroups splits a metric by a grouping field, scoped to this
// template.
func (t *Template[T]) CompareGroups(
	ctx context.Context, metric, groupField string,
) (GroupComparison, error) {
	return t.client.CompareGroups(ctx, t.name, metric, groupField)
}
