package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bobmcallan/esgfolio/internal/allocation"
	"github.com/bobmcallan/esgfolio/internal/interfaces"
	"github.com/bobmcallan/esgfolio/internal/models"
)

// fileCompany is one catalog row as written in a YAML or JSON file.
// Scores may be numbers or strings such as "72%".
type fileCompany struct {
	ISIN         string `yaml:"isin"`
	CompanyName  string `yaml:"company_name"`
	Sector       string `yaml:"sector"`
	ESGSector    string `yaml:"esg_sector"`
	ESGRating    string `yaml:"esg_rating"`
	ESGComposite any    `yaml:"esg_composite"`
}

type fileCatalog struct {
	Companies []fileCompany `yaml:"companies"`
}

// FileSource reads the catalog from a local YAML or JSON file. The file is
// either a list of companies or a mapping with a "companies" list.
type FileSource struct {
	path string
}

// NewFileSource creates a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// GetCompanies reads and parses the file on every call.
func (f *FileSource) GetCompanies(_ context.Context) ([]models.Company, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog rows from YAML or JSON. Rows without both an
// ISIN and a company name are skipped.
func ParseCatalog(data []byte) ([]models.Company, error) {
	var rows []fileCompany
	if err := yaml.Unmarshal(data, &rows); err != nil {
		var wrapped fileCatalog
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
		rows = wrapped.Companies
	}

	companies := make([]models.Company, 0, len(rows))
	for _, r := range rows {
		c := models.Company{
			ISIN:        strings.TrimSpace(r.ISIN),
			CompanyName: strings.TrimSpace(r.CompanyName),
			Sector:      r.Sector,
			ESGSector:   r.ESGSector,
			ESGRating:   strings.ToUpper(strings.TrimSpace(r.ESGRating)),
		}
		if c.ISIN == "" || c.CompanyName == "" {
			continue
		}
		if score, ok := allocation.ParseEsgScore(yamlScalar(r.ESGComposite)); ok {
			c.ESGComposite = models.Float(score)
		}
		companies = append(companies, c)
	}
	return companies, nil
}

// yamlScalar maps the integer types yaml.v3 decodes into onto ones ParseEsgScore knows.
func yamlScalar(v any) any {
	switch n := v.(type) {
	case uint64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return v
	}
}

// Ensure FileSource implements CatalogSource
var _ interfaces.CatalogSource = (*FileSource)(nil)
