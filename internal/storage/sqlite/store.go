// Package sqlite implements PortfolioStorage on an embedded SQLite database
// for the development API server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/interfaces"
	"github.com/bobmcallan/esgfolio/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	isin          TEXT PRIMARY KEY,
	company_name  TEXT NOT NULL,
	sector        TEXT NOT NULL DEFAULT '',
	esg_sector    TEXT NOT NULL DEFAULT '',
	esg_score     REAL,
	grade         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(company_name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS portfolios (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS portfolio_companies (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	portfolio_id INTEGER NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
	isin         TEXT NOT NULL REFERENCES companies(isin),
	aum_value    REAL,
	UNIQUE(portfolio_id, isin)
);
`

const holdingColumns = `pc.id, c.company_name, c.isin, pc.aum_value, c.esg_score, c.grade`

// Store is a SQLite-backed PortfolioStorage.
type Store struct {
	db     *sql.DB
	logger *common.Logger
}

// NewStore opens (creating if needed) the database at path and applies the
// schema. A path starting with "file:" is passed to the driver as is.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	if !strings.HasPrefix(path, "file:") {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		path = absPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite storage initialized")
	return &Store{db: db, logger: logger}, nil
}

// ListPortfolios returns the user's portfolios with holdings in insertion order.
func (s *Store) ListPortfolios(ctx context.Context, userID string) ([]models.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, pc.id, c.company_name, c.isin, pc.aum_value, c.esg_score, c.grade
		FROM portfolios p
		LEFT JOIN portfolio_companies pc ON pc.portfolio_id = p.id
		LEFT JOIN companies c ON c.isin = pc.isin
		WHERE p.user_id = ?
		ORDER BY p.id, pc.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var (
		portfolios []models.Portfolio
		index      = make(map[int64]int)
	)
	for rows.Next() {
		var (
			pid                  int64
			name                 string
			hid                  sql.NullInt64
			company, isin, grade sql.NullString
			aum, score           sql.NullFloat64
		)
		if err := rows.Scan(&pid, &name, &hid, &company, &isin, &aum, &score, &grade); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}
		i, ok := index[pid]
		if !ok {
			portfolios = append(portfolios, models.Portfolio{ID: strconv.FormatInt(pid, 10), Name: name, Holdings: []models.Holding{}})
			i = len(portfolios) - 1
			index[pid] = i
		}
		if !hid.Valid {
			continue
		}
		portfolios[i].Holdings = append(portfolios[i].Holdings,
			toHolding(hid.Int64, company.String, isin.String, aum, score, grade.String))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return portfolios, nil
}

// UpsertHoldings merges additions into the named portfolio in one
// transaction: existing companies get the new allocation, new ones are
// appended. Keys resolve by ISIN, then by company name. Any unknown key
// rejects the whole batch with UnknownCompaniesError.
func (s *Store) UpsertHoldings(ctx context.Context, userID, name string, additions []models.Addition) (*models.Portfolio, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	isins := make([]string, len(additions))
	var unknown []string
	for i, a := range additions {
		isin, err := resolveCompany(ctx, tx, a.Key)
		if err != nil {
			return nil, err
		}
		if isin == "" {
			unknown = append(unknown, a.Key)
			continue
		}
		isins[i] = isin
	}
	if len(unknown) > 0 {
		return nil, &models.UnknownCompaniesError{Keys: unknown}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO portfolios (user_id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, name) DO NOTHING`,
		userID, name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	var portfolioID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM portfolios WHERE user_id = ? AND name = ?`, userID, name).Scan(&portfolioID); err != nil {
		return nil, fmt.Errorf("failed to load portfolio id: %w", err)
	}

	for i, a := range additions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO portfolio_companies (portfolio_id, isin, aum_value) VALUES (?, ?, ?)
			ON CONFLICT(portfolio_id, isin) DO UPDATE SET aum_value = excluded.aum_value`,
			portfolioID, isins[i], a.AUM); err != nil {
			return nil, fmt.Errorf("failed to upsert holding %s: %w", isins[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit holdings: %w", err)
	}

	s.logger.Debug().Str("user", userID).Str("portfolio", name).Int("additions", len(additions)).Msg("Holdings upserted")

	portfolios, err := s.ListPortfolios(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range portfolios {
		if portfolios[i].Name == name {
			return &portfolios[i], nil
		}
	}
	return nil, fmt.Errorf("portfolio %q missing after upsert", name)
}

func resolveCompany(ctx context.Context, tx *sql.Tx, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil
	}
	var isin string
	err := tx.QueryRowContext(ctx, `SELECT isin FROM companies WHERE isin = ? COLLATE NOCASE`, key).Scan(&isin)
	if err == nil {
		return isin, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to resolve company %s: %w", key, err)
	}
	err = tx.QueryRowContext(ctx,
		`SELECT isin FROM companies WHERE company_name = ? COLLATE NOCASE ORDER BY isin LIMIT 1`, key).Scan(&isin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve company %s: %w", key, err)
	}
	return isin, nil
}

// UpdateHoldingAUM sets one holding's allocation. Holdings of other users
// are reported as ErrHoldingNotFound.
func (s *Store) UpdateHoldingAUM(ctx context.Context, userID, holdingID string, aum float64) (*models.Holding, error) {
	id, err := strconv.ParseInt(holdingID, 10, 64)
	if err != nil {
		return nil, models.ErrHoldingNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE portfolio_companies SET aum_value = ?
		WHERE id = ? AND portfolio_id IN (SELECT id FROM portfolios WHERE user_id = ?)`,
		aum, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update holding %s: %w", holdingID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.ErrHoldingNotFound
	}
	return s.getHolding(ctx, id)
}

func (s *Store) getHolding(ctx context.Context, id int64) (*models.Holding, error) {
	var (
		hid                  int64
		company, isin, grade string
		aum, score           sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT `+holdingColumns+`
		FROM portfolio_companies pc JOIN companies c ON c.isin = pc.isin
		WHERE pc.id = ?`, id).Scan(&hid, &company, &isin, &aum, &score, &grade)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrHoldingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load holding %d: %w", id, err)
	}
	h := toHolding(hid, company, isin, aum, score, grade)
	return &h, nil
}

// DeleteHolding removes one holding owned by userID.
func (s *Store) DeleteHolding(ctx context.Context, userID, holdingID string) error {
	id, err := strconv.ParseInt(holdingID, 10, 64)
	if err != nil {
		return models.ErrHoldingNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM portfolio_companies
		WHERE id = ? AND portfolio_id IN (SELECT id FROM portfolios WHERE user_id = ?)`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", holdingID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrHoldingNotFound
	}
	return nil
}

// ListCompanies returns the catalog ordered by company name.
func (s *Store) ListCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT isin, company_name, sector, esg_sector, esg_score, grade
		FROM companies ORDER BY company_name COLLATE NOCASE, isin`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		var (
			c     models.Company
			score sql.NullFloat64
		)
		if err := rows.Scan(&c.ISIN, &c.CompanyName, &c.Sector, &c.ESGSector, &score, &c.ESGRating); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		if score.Valid {
			c.ESGComposite = models.Float(score.Float64)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// SaveCompanies inserts or replaces catalog rows keyed by ISIN.
func (s *Store) SaveCompanies(ctx context.Context, companies []models.Company) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO companies (isin, company_name, sector, esg_sector, esg_score, grade)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(isin) DO UPDATE SET
			company_name = excluded.company_name,
			sector = excluded.sector,
			esg_sector = excluded.esg_sector,
			esg_score = excluded.esg_score,
			grade = excluded.grade`)
	if err != nil {
		return fmt.Errorf("failed to prepare company upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range companies {
		var score any
		if c.ESGComposite != nil {
			score = *c.ESGComposite
		}
		if _, err := stmt.ExecContext(ctx, c.ISIN, c.CompanyName, c.Sector, c.ESGSector, score, c.ESGRating); err != nil {
			return fmt.Errorf("failed to save company %s: %w", c.ISIN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit companies: %w", err)
	}
	s.logger.Info().Int("companies", len(companies)).Msg("Catalog saved")
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func toHolding(id int64, company, isin string, aum, score sql.NullFloat64, grade string) models.Holding {
	h := models.Holding{
		ID:          strconv.FormatInt(id, 10),
		CompanyName: company,
		ISIN:        isin,
	}
	if aum.Valid {
		h.AUMValue = models.Float(aum.Float64)
	}
	if score.Valid {
		h.ESGComposite = models.Float(score.Float64)
	}
	if band := models.RatingBand(strings.ToUpper(grade)); band.Valid() {
		h.ESGRating = &band
	}
	return h
}

// Ensure Store implements PortfolioStorage
var _ interfaces.PortfolioStorage = (*Store)(nil)
