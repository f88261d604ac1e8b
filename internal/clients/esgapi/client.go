// Package esgapi provides a client for the ESG ratings portal REST API
package esgapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/interfaces"
	"github.com/bobmcallan/esgfolio/internal/models"
)

const (
	DefaultBaseURL   = "http://localhost:8090/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	// maxCatalogPages bounds how many paginated catalog pages are followed
	maxCatalogPages = 50
)

// Client implements PortfolioRemote and CatalogSource over HTTP
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client bound to a bearer token
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ESG API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// IsUnauthorized reports whether the server rejected the credential
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// do performs a rate-limited request against path, which is either relative
// to the base URL or absolute (pagination links). A nil result skips decoding.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		reqURL = c.baseURL + path
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	if c.sameOrigin(req.URL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		c.logger.Warn().Str("url", req.URL.Redacted()).Msg("Link points off the API host, sending without credentials")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("url", path).Str("request_id", requestID).Msg("ESG API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.Status),
			Endpoint:   path,
		}
	}

	if result == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// sameOrigin reports whether u is on the base URL's scheme and host.
func (c *Client) sameOrigin(u *url.URL) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Scheme, u.Scheme) && strings.EqualFold(base.Host, u.Host)
}

// GetPortfolios retrieves all portfolios of the authenticated caller
func (c *Client) GetPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	var resp []portfolioData
	if err := c.do(ctx, http.MethodGet, "/portfolio/", nil, &resp); err != nil {
		return nil, err
	}

	portfolios := make([]models.Portfolio, len(resp))
	for i, p := range resp {
		portfolios[i] = p.toModel()
	}
	return portfolios, nil
}

// UpsertPortfolio posts an add batch as the JSON-encoded companies_data field
func (c *Client) UpsertPortfolio(ctx context.Context, name string, additions []models.Addition) (*models.Portfolio, error) {
	encoded, err := json.Marshal(additions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode companies_data: %w", err)
	}

	req := upsertRequest{Name: name, CompaniesData: string(encoded)}
	var resp portfolioData
	if err := c.do(ctx, http.MethodPost, "/portfolio/", req, &resp); err != nil {
		return nil, err
	}

	p := resp.toModel()
	if p.Name == "" {
		p.Name = name
	}
	return &p, nil
}

// UpdateHoldingAUM sets one holding's allocation percent
func (c *Client) UpdateHoldingAUM(ctx context.Context, holdingID string, aum float64) (*models.Holding, error) {
	var resp holdingData
	path := fmt.Sprintf("/portfolio/company/%s/", url.PathEscape(holdingID))
	if err := c.do(ctx, http.MethodPatch, path, aumPatch{AUMValue: aum}, &resp); err != nil {
		return nil, err
	}

	h := resp.toModel()
	if h.ID == "" {
		h.ID = holdingID
	}
	if h.AUMValue == nil {
		h.AUMValue = models.Float(aum)
	}
	return &h, nil
}

// DeleteHolding removes one holding
func (c *Client) DeleteHolding(ctx context.Context, holdingID string) error {
	path := fmt.Sprintf("/portfolio/company/%s/", url.PathEscape(holdingID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetCompanies retrieves the reference company catalog. Both a bare array
// and a paginated {"results": [...], "next": "..."} envelope are accepted.
func (c *Client) GetCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	next := "/companies/"

	for page := 0; next != "" && page < maxCatalogPages; page++ {
		var resp companiesResponse
		if err := c.do(ctx, http.MethodGet, next, nil, &resp); err != nil {
			return nil, err
		}
		for _, cd := range resp.Results {
			if co, ok := cd.toModel(); ok {
				companies = append(companies, co)
			}
		}
		next = resp.Next
	}

	c.logger.Debug().Int("count", len(companies)).Msg("Fetched company catalog")
	return companies, nil
}

// Ensure Client implements the collaborator interfaces
var (
	_ interfaces.PortfolioRemote = (*Client)(nil)
	_ interfaces.CatalogSource   = (*Client)(nil)
)
