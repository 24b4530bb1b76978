package querydex

import (
	"context"
	"fmt"
)

// Hit is a typed search result.
type Hit[T any] struct {
	Item  T
	Score float64
}

// SearchBuilder is a fluent builder for typed search queries.
type SearchBuilder[T any] struct {
	tmpl *Template[T]

	query   string
	from    int
	size    int
	summary bool
}

// Query sets the natural-language query text.
func (b *SearchBuilder[T]) Query(q string) *SearchBuilder[T] {
	b.query = q
	return b
}

// From sets the paging offset.
func (b *SearchBuilder[T]) From(n int) *SearchBuilder[T] {
	b.from = n
	return b
}

// Size sets the maximum number of results.
func (b *SearchBuilder[T]) Size(n int) *SearchBuilder[T] {
	b.size = n
	return b
}

// WithSummary requests a natural-language summary of the result set.
func (b *SearchBuilder[T]) WithSummary() *SearchBuilder[T] {
	b.summary = true
	return b
}

// Do executes the search and returns typed results.
func (b *SearchBuilder[T]) Do(ctx context.Context) ([]Hit[T], error) {
	resp, err := b.tmpl.client.Search(ctx, SearchRequest{
		Query:    b.query,
		Template: b.tmpl.name,
		From:     b.from,
		Size:     b.size,
		Summary:  b.summary,
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", b.tmpl.name, err)
	}
	return b.toHits(resp.Documents)
}

// toHits decodes raw document sources into typed items.
func (b *SearchBuilder[T]) toHits(docs []Document) ([]Hit[T], error) {
	hits := make([]Hit[T], len(docs))
	for i, d := range docs {
		item, ok := b.tmpl.meta.fromDocument(d.Data).(T)
		if !ok {
			return nil, fmt.Errorf("document %s: type assertion failed", d.ID)
		}
		hits[i] = Hit[T]{Item: item, Score: d.Score}
	}
	return hits, nil
}
