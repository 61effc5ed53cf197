package store

import (
	"context"

	"github.com/skiffhq/skiff/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for Skiff entities.
type Store interface {
	// Stack operations
	CreateStack(ctx context.Context, stack *domain.Stack) error
	GetStack(ctx context.Context, id string) (*domain.Stack, error)
	GetStackByName(ctx context.Context, name string) (*domain.Stack, error)
	UpdateStack(ctx context.Context, stack *domain.Stack) error
	DeleteStack(ctx context.Context, id string) error
	ListStacks(ctx context.Context, opts ListOptions) ([]domain.Stack, error)

	// Close closes the store and releases resources.
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
