package store

import (
	"context"

	"github.com/whaleen/portfolio/internal/models"
)

// RunListFilter specifies filters for listing bridge runs.
type RunListFilter struct {
	Repo   string
	Op     string
	Status models.RunStatus
	Limit  int
}

// Store defines the persistence interface for the admin run history.
type Store interface {
	// Bridge runs
	RecordRun(ctx context.Context, run *models.BridgeRun) error
	GetRun(ctx context.Context, id string) (*models.BridgeRun, error)
	ListRuns(ctx context.Context, filter RunListFilter) ([]*models.BridgeRun, error)
	PruneRuns(ctx context.Context, keep int) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
