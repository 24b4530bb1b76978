package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals a malformed or rejected request.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateAlias signals an alias already owned by an active mapping.
	ErrDuplicateAlias = errors.New("alias already exists")
	// ErrSystemMapping signals an attempted mutation of a system mapping.
	ErrSystemMapping = errors.New("system mapping is read-only")
	// ErrUnresolvedField signals a semantic field that resolved to nothing.
	ErrUnresolvedField = errors.New("field could not be resolved")
	// ErrTemplateUnknown signals an unknown template name.
	ErrTemplateUnknown = errors.New("unknown template")
	// ErrCompilerUnavailable signals an LLM compiler failure.
	ErrCompilerUnavailable = errors.New("query compiler unavailable")
	// ErrSearchBackend signals a search execution backend failure.
	ErrSearchBackend = errors.New("search backend error")
)

// DuplicateAliasError wraps ErrDuplicateAlias with the owning canonical name.
type DuplicateAliasError struct {
	Alias string
	Owner string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("%s: %q belongs to %q", ErrDuplicateAlias.Error(), e.Alias, e.Owner)
}

func (e *DuplicateAliasError) Unwrap() error { return ErrDuplicateAlias }

// NewDuplicateAlias creates a duplicate alias error.
func NewDuplicateAlias(alias, owner string) error {
	return &DuplicateAliasError{Alias: alias, Owner: owner}
}
