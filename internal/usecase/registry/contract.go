package registry

import (
	"context"

	"github.com/kailas-cloud/querydex/internal/domain/mapping"
)

// Repository defines the persistence contract for canonical field mappings.
type Repository interface {
	// LoadAll returns every stored mapping, active or not.
	LoadAll(ctx context.Context) ([]mapping.Mapping, error)
	// Save upserts a mapping keyed by its canonical name.
	Save(ctx context.Context, m mapping.Mapping) error
}
