// Package catalog resolves product codes to display metadata. The
// capture pipeline deals in raw codes only; reports consult the catalog
// to attach human-readable descriptions. The catalog file is optional
// and read-only.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Product is one catalog record.
type Product struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
	Unit        string `yaml:"unit,omitempty"`
}

type catalogFile struct {
	Products []Product `yaml:"products"`
}

// Catalog is an in-memory code index. The zero value is unusable; build
// one with Load, Parse or Empty.
type Catalog struct {
	byCode map[string]Product
}

// Empty returns a catalog with no products. Every lookup misses, which
// reports handle by showing the raw code.
func Empty() *Catalog {
	return &Catalog{byCode: map[string]Product{}}
}

// Load reads a YAML catalog file from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

// Parse unmarshals YAML bytes into a validated catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	byCode := make(map[string]Product, len(file.Products))
	for i, p := range file.Products {
		if p.Code == "" {
			return nil, fmt.Errorf("catalog: product %d has no code", i)
		}
		if _, dup := byCode[p.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate product code %q", p.Code)
		}
		byCode[p.Code] = p
	}
	return &Catalog{byCode: byCode}, nil
}

// Lookup returns the product for code.
func (c *Catalog) Lookup(code string) (Product, bool) {
	p, ok := c.byCode[code]
	return p, ok
}

// Describe returns the display description for code, or "" when the
// code is not catalogued.
func (c *Catalog) Describe(code string) string {
	return c.byCode[code].Description
}

// Len reports the number of catalogued products.
func (c *Catalog) Len() int {
	return len(c.byCode)
}
