package catalog

import "slices"

// TagClearance marks a product whose stock is being cleared.
const TagClearance = "clearance"

type Product struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Category        string   `json:"category" yaml:"category"`
	Brand           string   `json:"brand" yaml:"brand"`
	Tags            []string `json:"tags" yaml:"tags"`
	ProfitPotential float64  `json:"profit_potential" yaml:"profit_potential"`
}

func (p Product) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

func (p *Product) Valid() error {
	if p.ID == "" {
		return ErrMissingProductID
	}
	if p.ProfitPotential < 0 {
		return ErrNegativeProfit
	}
	return nil
}

// clone returns a copy whose tag set is deduplicated and detached from p.
func (p Product) clone() Product {
	out := p
	out.Tags = make([]string, 0, len(p.Tags))
	for _, tag := range p.Tags {
		if !slices.Contains(out.Tags, tag) {
			out.Tags = append(out.Tags, tag)
		}
	}
	return out
}

var (
	ErrMissingProductID = &validationError{"missing product id"}
	ErrNegativeProfit   = &validationError{"negative profit_potential"}
	ErrDuplicateProduct = &validationError{"duplicate product id"}
	ErrMissingKey       = &validationError{"missing knowledge base key"}
)

type validationError struct {
	msg string
}

func (v *validationError) Error() string {
	return v.msg
}
