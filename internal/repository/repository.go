package repository

import (
	"github.com/prperemyshlev/datahub-healthcheck/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	Run RunRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		Run: NewRunRepository(db),
	}
}
