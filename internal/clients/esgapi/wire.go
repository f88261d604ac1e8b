package esgapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bobmcallan/esgfolio/internal/allocation"
	"github.com/bobmcallan/esgfolio/internal/models"
)

// Wire shapes. Decoded here and narrowed into models before leaving the package.

type upsertRequest struct {
	Name          string `json:"name"`
	CompaniesData string `json:"companies_data"`
}

type aumPatch struct {
	AUMValue float64 `json:"aum_value"`
}

type portfolioData struct {
	ID        flexID        `json:"id"`
	Name      string        `json:"name"`
	Companies []holdingData `json:"companies"`
}

func (p portfolioData) toModel() models.Portfolio {
	holdings := make([]models.Holding, 0, len(p.Companies))
	for _, h := range p.Companies {
		holdings = append(holdings, h.toModel())
	}
	return models.Portfolio{ID: string(p.ID), Name: p.Name, Holdings: holdings}
}

type holdingData struct {
	ID           flexID          `json:"id"`
	CompanyName  string          `json:"company_name"`
	ISIN         string          `json:"isin"`
	AUMValue     json.RawMessage `json:"aum_value"`
	ESGComposite json.RawMessage `json:"esg_composite"`
	ESGRating    *string         `json:"esg_rating"`
}

func (h holdingData) toModel() models.Holding {
	out := models.Holding{
		ID:          string(h.ID),
		CompanyName: h.CompanyName,
		ISIN:        strings.TrimSpace(h.ISIN),
	}
	if v, ok := parseNumber(h.AUMValue); ok {
		out.AUMValue = models.Float(v)
	}
	if v, ok := allocation.ParseEsgScore(decodeLoose(h.ESGComposite)); ok {
		out.ESGComposite = models.Float(v)
	}
	out.ESGRating = parseBand(h.ESGRating)
	return out
}

type companyData struct {
	ISIN         string          `json:"isin"`
	CompanyName  string          `json:"company_name"`
	Sector       string          `json:"sector"`
	ESGSector    string          `json:"esg_sector"`
	ESGRating    string          `json:"esg_rating"`
	Grade        string          `json:"grade"` // legacy field carried by older catalog rows
	ESGComposite json.RawMessage `json:"esg_composite"`
	ESGScore     json.RawMessage `json:"esg_score"`
}

func (c companyData) toModel() (models.Company, bool) {
	isin := strings.TrimSpace(c.ISIN)
	if isin == "" {
		return models.Company{}, false
	}
	co := models.Company{
		ISIN:        isin,
		CompanyName: strings.TrimSpace(c.CompanyName),
		Sector:      c.Sector,
		ESGSector:   c.ESGSector,
		ESGRating:   c.ESGRating,
	}
	if co.ESGRating == "" {
		co.ESGRating = c.Grade
	}
	raw := c.ESGComposite
	if len(raw) == 0 {
		raw = c.ESGScore
	}
	if v, ok := allocation.ParseEsgScore(decodeLoose(raw)); ok {
		co.ESGComposite = models.Float(v)
	}
	return co, true
}

// companiesResponse accepts a bare array or a paginated envelope.
type companiesResponse struct {
	Results []companyData
	Next    string
}

func (r *companiesResponse) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.Results)
	}

	var envelope struct {
		Results []companyData `json:"results"`
		Next    *string       `json:"next"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return err
	}
	r.Results = envelope.Results
	if envelope.Next != nil {
		r.Next = *envelope.Next
	}
	return nil
}

// flexID accepts an id encoded as a JSON number or string.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// decodeLoose decodes a raw value into nil, json.Number, string, or
// whatever else the server sent.
func decodeLoose(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// parseNumber reads a nullable number that may arrive as a numeric string.
func parseNumber(raw json.RawMessage) (float64, bool) {
	switch v := decodeLoose(raw).(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseBand(s *string) *models.RatingBand {
	if s == nil {
		return nil
	}
	band := models.RatingBand(strings.ToUpper(strings.TrimSpace(*s)))
	if !band.Valid() {
		return nil
	}
	return &band
}

// errorMessage extracts a readable message from an error body. The server
// answers with {"error": ...}, {"detail": ...} or per-field lists such as
// {"name": ["..."]}; anything else is returned verbatim.
func errorMessage(body []byte, status string) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return status
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return string(trimmed)
	}

	for _, key := range []string{"error", "detail", "message"} {
		if raw, ok := obj[key]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var list []string
		if json.Unmarshal(obj[k], &list) == nil && len(list) > 0 {
			return fmt.Sprintf("%s: %s", k, list[0])
		}
	}

	return string(trimmed)
}
