// Package interfaces defines service contracts for esgfolio
package interfaces

import (
	"context"

	"github.com/bobmcallan/esgfolio/internal/models"
)

// PortfolioRemote is the remote persistence collaborator behind the holding
// store. Implementations are bound to a caller identity at construction.
type PortfolioRemote interface {
	// GetPortfolios retrieves all portfolios of the authenticated caller
	GetPortfolios(ctx context.Context) ([]models.Portfolio, error)

	// UpsertPortfolio merges an add batch into the named portfolio,
	// creating the portfolio on first use
	UpsertPortfolio(ctx context.Context, name string, additions []models.Addition) (*models.Portfolio, error)

	// UpdateHoldingAUM sets one holding's allocation percent
	UpdateHoldingAUM(ctx context.Context, holdingID string, aum float64) (*models.Holding, error)

	// DeleteHolding removes one holding
	DeleteHolding(ctx context.Context, holdingID string) error
}

// CatalogSource supplies the read-only reference company catalog.
type CatalogSource interface {
	GetCompanies(ctx context.Context) ([]models.Company, error)
}
