package status

import (
	"context"
	"sync"
)

// InMemoryRepository stores status checks in an in-process slice.
type InMemoryRepository struct {
	mu     sync.RWMutex
	checks []Check
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Create appends a check.
func (r *InMemoryRepository) Create(_ context.Context, check Check) (Check, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checks = append(r.checks, check)
	return check, nil
}

// List returns up to limit checks in insertion order.
func (r *InMemoryRepository) List(_ context.Context, limit int) ([]Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := min(len(r.checks), limit)
	out := make([]Check, n)
	copy(out, r.checks[:n])
	return out, nil
}
