package catalog

import "fmt"

// Catalog is a read-only product table. It is built once and never mutated,
// so a single instance may be shared by any number of goroutines.
type Catalog struct {
	products map[string]Product
	order    []string
}

// New validates products and builds a catalog preserving their order.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make(map[string]Product, len(products)),
		order:    make([]string, 0, len(products)),
	}
	for i := range products {
		p := products[i]
		if err := p.Valid(); err != nil {
			return nil, fmt.Errorf("product %d (%q): %w", i, p.ID, err)
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProduct, p.ID)
		}
		c.products[p.ID] = p.clone()
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Lookup returns the product for id, or the all-default record when the id is
// not catalogued. It never fails.
func (c *Catalog) Lookup(id string) Product {
	p, _ := c.Resolve(id)
	return p
}

// Resolve reports whether id is catalogued alongside its product.
func (c *Catalog) Resolve(id string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	p, ok := c.products[id]
	if !ok {
		return Product{}, false
	}
	return p.clone(), true
}

// Products returns every product in load order.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id].clone())
	}
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
