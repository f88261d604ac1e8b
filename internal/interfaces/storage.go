package interfaces

import (
	"context"

	"github.com/bobmcallan/esgfolio/internal/models"
)

// PortfolioStorage is the server-side persistence used by the dev API server.
// Every call is scoped to a user id.
type PortfolioStorage interface {
	ListPortfolios(ctx context.Context, userID string) ([]models.Portfolio, error)

	// UpsertHoldings resolves each addition key (ISIN, then company name) and
	// merges it into the named portfolio in one transaction.
	UpsertHoldings(ctx context.Context, userID, name string, additions []models.Addition) (*models.Portfolio, error)

	UpdateHoldingAUM(ctx context.Context, userID, holdingID string, aum float64) (*models.Holding, error)
	DeleteHolding(ctx context.Context, userID, holdingID string) error

	// Catalog
	ListCompanies(ctx context.Context) ([]models.Company, error)
	SaveCompanies(ctx context.Context, companies []models.Company) error

	Close() error
}
