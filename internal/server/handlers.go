package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/models"
)

const maxPageSize = 500

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, common.CurrentBuild())
}

// handlePortfolioList handles GET /api/portfolio/.
func (s *Server) handlePortfolioList(w http.ResponseWriter, r *http.Request) {
	userID := common.ResolveUserID(r.Context())
	portfolios, err := s.storage.ListPortfolios(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user", userID).Msg("Failed to list portfolios")
		WriteError(w, http.StatusInternalServerError, "Failed to list portfolios")
		return
	}
	if portfolios == nil {
		portfolios = []models.Portfolio{}
	}
	WriteJSON(w, http.StatusOK, portfolios)
}

type upsertRequest struct {
	Name          string          `json:"name"`
	CompaniesData json.RawMessage `json:"companies_data"`
}

// handlePortfolioUpsert handles POST /api/portfolio/ with
// {"name": "...", "companies_data": "[{\"id_key\": ..., \"aum\": ...}]"}.
func (s *Server) handlePortfolioUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		WriteJSON(w, http.StatusBadRequest, map[string][]string{"name": {"This field is required."}})
		return
	}

	var additions []models.Addition
	if err := UnmarshalEncodedArray(req.CompaniesData, &additions); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string][]string{"companies_data": {"Invalid companies data: " + err.Error()}})
		return
	}
	if len(additions) == 0 {
		WriteJSON(w, http.StatusBadRequest, map[string][]string{"companies_data": {"At least one company is required."}})
		return
	}
	for _, a := range additions {
		if strings.TrimSpace(a.Key) == "" || !validPercent(a.AUM) {
			WriteJSON(w, http.StatusBadRequest, map[string][]string{
				"companies_data": {fmt.Sprintf("Invalid entry %q: aum must be between 0 and 100.", a.Key)},
			})
			return
		}
	}

	userID := common.ResolveUserID(r.Context())
	p, err := s.storage.UpsertHoldings(r.Context(), userID, name, additions)
	if err != nil {
		var unknown *models.UnknownCompaniesError
		if errors.As(err, &unknown) {
			WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "unknown_company")
			return
		}
		s.logger.Error().Err(err).Str("user", userID).Str("portfolio", name).Msg("Failed to upsert holdings")
		WriteError(w, http.StatusInternalServerError, "Failed to save portfolio")
		return
	}

	s.logger.Info().Str("user", userID).Str("portfolio", name).Int("additions", len(additions)).Msg("Portfolio holdings upserted")
	WriteJSON(w, http.StatusOK, p)
}

type aumPatch struct {
	AUMValue *float64 `json:"aum_value"`
}

// handleHoldingUpdate handles PATCH /api/portfolio/company/{id}/.
func (s *Server) handleHoldingUpdate(w http.ResponseWriter, r *http.Request) {
	var req aumPatch
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.AUMValue == nil || !validPercent(*req.AUMValue) {
		WriteJSON(w, http.StatusBadRequest, map[string][]string{"aum_value": {"Must be a number between 0 and 100."}})
		return
	}

	id := chi.URLParam(r, "id")
	h, err := s.storage.UpdateHoldingAUM(r.Context(), common.ResolveUserID(r.Context()), id, *req.AUMValue)
	if err != nil {
		s.writeStorageError(w, err, "Failed to update holding")
		return
	}
	WriteJSON(w, http.StatusOK, h)
}

// handleHoldingDelete handles DELETE /api/portfolio/company/{id}/.
func (s *Server) handleHoldingDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.storage.DeleteHolding(r.Context(), common.ResolveUserID(r.Context()), id); err != nil {
		s.writeStorageError(w, err, "Failed to delete holding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type companyPage struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []models.Company `json:"results"`
}

// handleCompanyList handles GET /api/companies/. Without page_size the whole
// catalog is returned as an array; with it, a paginated envelope.
func (s *Server) handleCompanyList(w http.ResponseWriter, r *http.Request) {
	companies, err := s.storage.ListCompanies(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list companies")
		WriteError(w, http.StatusInternalServerError, "Failed to list companies")
		return
	}
	if companies == nil {
		companies = []models.Company{}
	}

	q := r.URL.Query()
	if q.Get("page_size") == "" {
		WriteJSON(w, http.StatusOK, companies)
		return
	}

	size, err := strconv.Atoi(q.Get("page_size"))
	if err != nil || size <= 0 {
		WriteError(w, http.StatusBadRequest, "page_size must be a positive integer")
		return
	}
	size = min(size, maxPageSize)
	page := 1
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page <= 0 {
			WriteError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
	}

	start := len(companies)
	if page-1 < len(companies)/size+1 {
		start = min((page-1)*size, len(companies))
	}
	end := min(start+size, len(companies))
	resp := companyPage{Count: len(companies), Results: companies[start:end]}
	if end < len(companies) {
		resp.Next = pageURL(r, page+1, size)
	}
	if page > 1 {
		resp.Previous = pageURL(r, page-1, size)
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) writeStorageError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, models.ErrHoldingNotFound) {
		WriteError(w, http.StatusNotFound, "Holding not found")
		return
	}
	s.logger.Error().Err(err).Msg(message)
	WriteError(w, http.StatusInternalServerError, message)
}

func validPercent(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= models.AllocationBudget
}

// pageURL builds an absolute link to another page of the current request.
func pageURL(r *http.Request, page, size int) *string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(size))
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	s := u.String()
	return &s
}
