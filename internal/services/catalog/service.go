// Package catalog serves lookups against the read-only reference company catalog
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/interfaces"
	"github.com/bobmcallan/esgfolio/internal/models"
)

const (
	companiesKey    = "companies"
	cleanupInterval = 30 * time.Minute
	defaultLimit    = 20
)

// index is the cached, pre-keyed form of one catalog fetch.
type index struct {
	companies []models.Company
	byISIN    map[string]int
	byName    map[string]int
}

// Service implements CatalogService over a CatalogSource, caching the
// catalog for ttl.
type Service struct {
	source interfaces.CatalogSource
	cache  *cache.Cache
	ttl    time.Duration
	logger *common.Logger
}

// NewService creates a catalog service. A non-positive ttl disables expiry.
func NewService(source interfaces.CatalogSource, ttl time.Duration, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	exp := ttl
	if exp <= 0 {
		exp = cache.NoExpiration
	}
	return &Service{
		source: source,
		cache:  cache.New(exp, cleanupInterval),
		ttl:    exp,
		logger: logger,
	}
}

func (s *Service) load(ctx context.Context) (*index, error) {
	if cached, found := s.cache.Get(companiesKey); found {
		return cached.(*index), nil
	}

	s.logger.Debug().Msg("Catalog cache miss, fetching companies")
	companies, err := s.source.GetCompanies(ctx)
	if err != nil {
		return nil, &models.FetchError{Op: "companies", Err: err}
	}

	idx := &index{
		companies: companies,
		byISIN:    make(map[string]int, len(companies)),
		byName:    make(map[string]int, len(companies)),
	}
	for i, c := range companies {
		if k := isinKey(c.ISIN); k != "" {
			if _, dup := idx.byISIN[k]; !dup {
				idx.byISIN[k] = i
			}
		}
		if k := nameKey(c.CompanyName); k != "" {
			if _, dup := idx.byName[k]; !dup {
				idx.byName[k] = i
			}
		}
	}

	s.cache.Set(companiesKey, idx, s.ttl)
	s.logger.Info().Int("companies", len(companies)).Msg("Catalog loaded")
	return idx, nil
}

// Invalidate drops the cached catalog.
func (s *Service) Invalidate() {
	s.cache.Delete(companiesKey)
}

// Companies returns the whole catalog in source order.
func (s *Service) Companies(ctx context.Context) ([]models.Company, error) {
	idx, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]models.Company(nil), idx.companies...), nil
}

// ByISIN finds a company by ISIN, ignoring case. Returns nil when absent.
func (s *Service) ByISIN(ctx context.Context, isin string) (*models.Company, error) {
	idx, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if i, ok := idx.byISIN[isinKey(isin)]; ok {
		c := idx.companies[i]
		return &c, nil
	}
	return nil, nil
}

// ByName finds a company by name, ignoring case and surrounding space.
// Returns nil when absent.
func (s *Service) ByName(ctx context.Context, name string) (*models.Company, error) {
	idx, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if i, ok := idx.byName[nameKey(name)]; ok {
		c := idx.companies[i]
		return &c, nil
	}
	return nil, nil
}

// Search returns companies whose name or ISIN contains query, prefix
// matches first. A non-positive limit uses the default of 20.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.Company, error) {
	idx, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	q := nameKey(query)
	if q == "" {
		if len(idx.companies) < limit {
			limit = len(idx.companies)
		}
		return append([]models.Company(nil), idx.companies[:limit]...), nil
	}

	type hit struct {
		company models.Company
		prefix  bool
	}
	var hits []hit
	for _, c := range idx.companies {
		name := nameKey(c.CompanyName)
		isin := strings.ToLower(c.ISIN)
		if strings.Contains(name, q) || strings.Contains(isin, q) {
			hits = append(hits, hit{company: c, prefix: strings.HasPrefix(name, q) || strings.HasPrefix(isin, q)})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].prefix && !hits[j].prefix
	})

	out := make([]models.Company, 0, min(limit, len(hits)))
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		out = append(out, h.company)
	}
	return out, nil
}

// ResolveNames maps company names to catalog rows in input order. Any
// unknown name fails the whole call with a ValidationError.
func (s *Service) ResolveNames(ctx context.Context, names []string) ([]models.Company, error) {
	idx, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out     []models.Company
		unknown []string
	)
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		i, ok := idx.byName[nameKey(n)]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		out = append(out, idx.companies[i])
	}
	if len(unknown) > 0 {
		return nil, &models.ValidationError{
			Field:   "companies",
			Message: fmt.Sprintf("unknown companies: %s", strings.Join(unknown, ", ")),
		}
	}
	return out, nil
}

func isinKey(isin string) string {
	return strings.ToUpper(strings.TrimSpace(isin))
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Ensure Service implements CatalogService
var _ interfaces.CatalogService = (*Service)(nil)
