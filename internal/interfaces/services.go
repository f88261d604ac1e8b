package interfaces

import (
	"context"

	"github.com/bobmcallan/esgfolio/internal/models"
)

// HoldingStore owns the committed holdings of every portfolio and mediates
// all writes to the remote collaborator.
type HoldingStore interface {
	// LoadPortfolios refreshes local state from the remote store
	LoadPortfolios(ctx context.Context) ([]models.Portfolio, error)

	// CommitAdditions validates and persists an add batch, then reloads
	CommitAdditions(ctx context.Context, name string, additions []models.Addition) (*models.Portfolio, error)

	// UpdateHoldingAllocation persists one holding's allocation
	UpdateHoldingAllocation(ctx context.Context, holdingID string, value float64) (*models.Holding, error)

	// RemoveHolding deletes one holding
	RemoveHolding(ctx context.Context, holdingID string) error

	// Holdings returns a deep copy of the committed holdings of a portfolio
	Holdings(name string) []models.Holding
}

// CatalogService answers lookups against the reference company catalog.
type CatalogService interface {
	Companies(ctx context.Context) ([]models.Company, error)
	ByISIN(ctx context.Context, isin string) (*models.Company, error)
	ByName(ctx context.Context, name string) (*models.Company, error)
	Search(ctx context.Context, query string, limit int) ([]models.Company, error)
	ResolveNames(ctx context.Context, names []string) ([]models.Company, error)
}
