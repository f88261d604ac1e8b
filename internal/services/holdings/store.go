// Package holdings provides the committed holding store for all portfolios
package holdings

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/bobmcallan/esgfolio/internal/allocation"
	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/interfaces"
	"github.com/bobmcallan/esgfolio/internal/models"
)

// Store implements HoldingStore. Local state changes only after the remote
// call it depends on has succeeded.
type Store struct {
	remote interfaces.PortfolioRemote
	logger *common.Logger

	// writeMu is held across remote calls. Add batches take it exclusively
	// so budget checks see every committed write; per-holding writes share it.
	writeMu sync.RWMutex

	mu         sync.RWMutex
	portfolios map[string]*models.Portfolio
	order      []string
	loaded     bool
}

// NewStore creates a store over a remote collaborator already bound to the
// caller's credential.
func NewStore(remote interfaces.PortfolioRemote, logger *common.Logger) *Store {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Store{
		remote:     remote,
		logger:     logger,
		portfolios: make(map[string]*models.Portfolio),
	}
}

// LoadPortfolios fetches every portfolio of the caller and replaces local
// state. On failure prior state is kept and a FetchError is returned.
func (s *Store) LoadPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	fetched, err := s.remote.GetPortfolios(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load portfolios")
		return nil, &models.FetchError{Op: "portfolios", Err: err}
	}

	portfolios := make(map[string]*models.Portfolio, len(fetched))
	order := make([]string, 0, len(fetched))
	for i := range fetched {
		p := fetched[i].Clone()
		if _, dup := portfolios[p.Name]; !dup {
			order = append(order, p.Name)
		}
		portfolios[p.Name] = p
	}

	s.mu.Lock()
	s.portfolios = portfolios
	s.order = order
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug().Int("portfolios", len(order)).Msg("Portfolios loaded")

	out := make([]models.Portfolio, 0, len(order))
	for _, name := range order {
		out = append(out, *portfolios[name].Clone())
	}
	return out, nil
}

// CommitAdditions persists an add batch to the named portfolio. The batch is
// rejected without any remote call when current + batch total would exceed
// the allocation budget.
func (s *Store) CommitAdditions(ctx context.Context, name string, additions []models.Addition) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &models.ValidationError{Field: "portfolio", Message: "portfolio name is required"}
	}
	if len(additions) == 0 {
		return nil, &models.ValidationError{Field: "additions", Message: "at least one company is required"}
	}
	for _, a := range additions {
		if strings.TrimSpace(a.Key) == "" {
			return nil, &models.ValidationError{Field: "additions", Message: "every addition needs an ISIN or company name"}
		}
		if math.IsNaN(a.AUM) || math.IsInf(a.AUM, 0) || a.AUM < 0 || a.AUM > models.AllocationBudget {
			return nil, &models.ValidationError{Field: "aum", Message: "allocation must be between 0 and 100"}
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.isLoaded() {
		if _, err := s.LoadPortfolios(ctx); err != nil {
			return nil, err
		}
	}

	current := allocation.HoldingsTotal(s.Holdings(name))
	adding := allocation.AdditionsTotal(additions)
	if allocation.ExceedsBudget(current, adding) {
		s.logger.Info().
			Str("portfolio", name).
			Str("current", current.String()).
			Str("adding", adding.String()).
			Msg("Add batch rejected: allocation budget exceeded")
		return nil, &models.AllocationExceededError{
			Current:   current.InexactFloat64(),
			Attempted: adding.InexactFloat64(),
		}
	}

	s.logger.Info().Str("portfolio", name).Int("additions", len(additions)).Msg("Committing holdings")

	if _, err := s.remote.UpsertPortfolio(ctx, name, additions); err != nil {
		s.logger.Error().Err(err).Str("portfolio", name).Msg("Failed to persist holdings")
		return nil, &models.PersistError{Op: "add holdings", Err: err}
	}

	if _, err := s.LoadPortfolios(ctx); err != nil {
		return nil, err
	}

	if p := s.Portfolio(name); p != nil {
		return p, nil
	}
	return &models.Portfolio{Name: name}, nil
}

// UpdateHoldingAllocation clamps value to [0, 100] and persists it for one
// holding. Non-finite values are sent as 0.
func (s *Store) UpdateHoldingAllocation(ctx context.Context, holdingID string, value float64) (*models.Holding, error) {
	if strings.TrimSpace(holdingID) == "" {
		return nil, &models.ValidationError{Field: "holding", Message: "holding id is required"}
	}
	pct := allocation.NormalizePercent(value)

	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	updated, err := s.remote.UpdateHoldingAUM(ctx, holdingID, pct)
	if err != nil {
		s.logger.Error().Err(err).Str("holding", holdingID).Msg("Failed to update allocation")
		return nil, &models.PersistError{Op: "update allocation", Failed: []string{holdingID}, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.findLocked(holdingID); h != nil {
		h.AUMValue = models.Float(pct)
		out := h.Clone()
		return &out, nil
	}

	if updated == nil {
		return &models.Holding{ID: holdingID, AUMValue: models.Float(pct)}, nil
	}
	out := updated.Clone()
	return &out, nil
}

// RemoveHolding deletes one holding remotely and, on success, locally.
func (s *Store) RemoveHolding(ctx context.Context, holdingID string) error {
	if strings.TrimSpace(holdingID) == "" {
		return &models.ValidationError{Field: "holding", Message: "holding id is required"}
	}

	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	if err := s.remote.DeleteHolding(ctx, holdingID); err != nil {
		s.logger.Error().Err(err).Str("holding", holdingID).Msg("Failed to remove holding")
		return &models.PersistError{Op: "remove holding", Failed: []string{holdingID}, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.portfolios {
		for i := range p.Holdings {
			if p.Holdings[i].ID == holdingID {
				p.Holdings = append(p.Holdings[:i], p.Holdings[i+1:]...)
				s.logger.Info().Str("portfolio", p.Name).Str("holding", holdingID).Msg("Holding removed")
				return nil
			}
		}
	}
	return nil
}

// Portfolio returns a deep copy of the named portfolio, or nil when it has
// never been seen.
func (s *Store) Portfolio(name string) *models.Portfolio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.portfolios[name].Clone()
}

// Holdings returns a deep copy of the committed holdings of a portfolio.
func (s *Store) Holdings(name string) []models.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.portfolios[name]; p != nil {
		return models.CloneHoldings(p.Holdings)
	}
	return nil
}

// Names lists the portfolios that currently exist, i.e. hold at least one
// company, in the order the remote store returned them.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, name := range s.order {
		if !s.portfolios[name].IsEmpty() {
			names = append(names, name)
		}
	}
	return names
}

// CurrentTotal is the committed total allocation of a portfolio.
func (s *Store) CurrentTotal(name string) float64 {
	return allocation.HoldingsTotal(s.Holdings(name)).InexactFloat64()
}

// Stats derives allocation statistics for the committed holdings of a portfolio.
func (s *Store) Stats(name string) models.PortfolioStats {
	return allocation.WeightedPortfolioStats(s.Holdings(name))
}

// isLoaded reports whether LoadPortfolios has succeeded at least once.
func (s *Store) isLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) findLocked(holdingID string) *models.Holding {
	for _, p := range s.portfolios {
		if h := p.Find(holdingID); h != nil {
			return h
		}
	}
	return nil
}

// Ensure Store implements HoldingStore
var _ interfaces.HoldingStore = (*Store)(nil)
