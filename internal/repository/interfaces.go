package repository

import (
	"context"

	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
)

// RunRepository defines methods for run history operations
type RunRepository interface {
	Save(ctx context.Context, run *domain.Run) error
	Latest(ctx context.Context) (*domain.Run, error)
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, limit int) ([]*domain.Run, error)
}
