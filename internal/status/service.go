package status

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxClientNameLength = 200
	listLimit           = 1000
)

// Service validates and stores status checks.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a Service with the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new status check for clientName.
func (s *Service) Create(ctx context.Context, clientName string) (Check, error) {
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return Check{}, &ValidationError{Message: "client_name is required"}
	}
	if len(clientName) > maxClientNameLength {
		return Check{}, &ValidationError{Message: "client_name is too long"}
	}

	return s.repo.Create(ctx, Check{
		ID:         uuid.New(),
		ClientName: clientName,
		Timestamp:  s.now().UTC(),
	})
}

// List returns stored status checks.
func (s *Service) List(ctx context.Context) ([]Check, error) {
	return s.repo.List(ctx, listLimit)
}
