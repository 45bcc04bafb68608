package status

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrValidation is returned when input validation fails.
var ErrValidation = errors.New("validation error")

// ValidationError wraps a validation message so callers can distinguish
// client errors from internal failures.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Check records that a client reached the API.
type Check struct {
	ID         uuid.UUID
	ClientName string
	Timestamp  time.Time
}

// Repository persists status checks.
type Repository interface {
	Create(ctx context.Context, check Check) (Check, error)
	List(ctx context.Context, limit int) ([]Check, error)
}
