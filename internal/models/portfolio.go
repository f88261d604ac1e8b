// Package models defines data structures for esgfolio
package models

// AllocationBudget is the maximum total allocation of a portfolio, in percent.
const AllocationBudget = 100.0

// AllocationEpsilon absorbs floating-point rounding when comparing a total
// allocation against AllocationBudget.
const AllocationEpsilon = 0.0001

// Portfolio is a named, insertion-ordered list of holdings owned by one user.
// A portfolio exists for listing purposes only while it has at least one holding.
type Portfolio struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name"`
	Holdings []Holding `json:"companies"`
}

// IsEmpty reports whether the portfolio holds no companies.
func (p *Portfolio) IsEmpty() bool {
	return p == nil || len(p.Holdings) == 0
}

// Clone returns a deep copy of the portfolio.
func (p *Portfolio) Clone() *Portfolio {
	if p == nil {
		return nil
	}
	out := &Portfolio{ID: p.ID, Name: p.Name}
	out.Holdings = CloneHoldings(p.Holdings)
	return out
}

// Find returns the holding with the given id, or nil.
func (p *Portfolio) Find(id string) *Holding {
	if p == nil {
		return nil
	}
	for i := range p.Holdings {
		if p.Holdings[i].ID == id {
			return &p.Holdings[i]
		}
	}
	return nil
}

// Holding is one company's position inside a portfolio.
type Holding struct {
	ID           string      `json:"id,omitempty"` // assigned by the remote store; empty until persisted
	CompanyName  string      `json:"company_name"`
	ISIN         string      `json:"isin"`
	AUMValue     *float64    `json:"aum_value"`     // allocation percent 0-100; nil = unset
	ESGComposite *float64    `json:"esg_composite"` // 0-100; nil when the company has no score
	ESGRating    *RatingBand `json:"esg_rating"`
}

// Allocation returns the allocation percent, treating unset as 0.
func (h Holding) Allocation() float64 {
	if h.AUMValue == nil {
		return 0
	}
	return *h.AUMValue
}

// Clone returns a deep copy of the holding; pointer fields are not shared.
func (h Holding) Clone() Holding {
	out := h
	out.AUMValue = cloneFloat(h.AUMValue)
	out.ESGComposite = cloneFloat(h.ESGComposite)
	if h.ESGRating != nil {
		r := *h.ESGRating
		out.ESGRating = &r
	}
	return out
}

// CloneHoldings deep-copies a holdings slice.
func CloneHoldings(in []Holding) []Holding {
	if in == nil {
		return nil
	}
	out := make([]Holding, len(in))
	for i, h := range in {
		out[i] = h.Clone()
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to v. Handy for optional fields.
func Float(v float64) *float64 {
	return &v
}

// Addition is one element of an add-holdings batch. Key is an ISIN, or a
// company name the remote store can resolve.
type Addition struct {
	Key string  `json:"id_key"`
	AUM float64 `json:"aum"`
}

// Company is a row of the read-only reference company catalog.
type Company struct {
	ISIN         string   `json:"isin" yaml:"isin"`
	CompanyName  string   `json:"company_name" yaml:"company_name"`
	Sector       string   `json:"sector,omitempty" yaml:"sector,omitempty"`
	ESGSector    string   `json:"esg_sector,omitempty" yaml:"esg_sector,omitempty"`
	ESGRating    string   `json:"esg_rating,omitempty" yaml:"esg_rating,omitempty"`
	ESGComposite *float64 `json:"esg_composite,omitempty" yaml:"esg_composite,omitempty"`
}

// PortfolioStats summarises a holdings list. TotalAllocation is the plain sum
// of clamped allocations and may be above or below 100.
type PortfolioStats struct {
	TotalAllocation float64    `json:"total_allocation"`
	AverageScore    float64    `json:"average_score"`
	AverageRating   RatingBand `json:"average_rating"`
}
