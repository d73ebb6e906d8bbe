// Package catalog holds the static, read-only list of categories and items
// staff can pull. It is loaded once at process start and never mutated.
package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vbonduro/pullsheet/internal/domain"
)

//go:embed catalog.yaml
var defaultYAML []byte

// AllCategories is the category filter value that matches every category.
const AllCategories = "all"

type Item struct {
	Name  string `yaml:"name" json:"name"`
	Note  string `yaml:"note" json:"note"`
	Shelf string `yaml:"shelf" json:"shelf"`
}

type Category struct {
	Name  string `yaml:"name" json:"name"`
	Items []Item `yaml:"items" json:"items"`
}

// Catalog preserves declaration order for both categories and items.
type Catalog struct {
	categories []Category
	index      map[domain.ItemKey]Item
}

type document struct {
	Categories []Category `yaml:"categories"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog document from path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document. Category names, item names
// within a category, and the reserved "all" filter value must not collide.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(doc.Categories)
}

func New(categories []Category) (*Catalog, error) {
	c := &Catalog{index: make(map[domain.ItemKey]Item)}
	seen := make(map[string]bool, len(categories))
	for _, cat := range categories {
		if cat.Name == "" || cat.Name == AllCategories {
			return nil, fmt.Errorf("invalid category name %q", cat.Name)
		}
		if seen[cat.Name] {
			return nil, fmt.Errorf("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true

		items := make([]Item, 0, len(cat.Items))
		for _, it := range cat.Items {
			if it.Name == "" {
				return nil, fmt.Errorf("category %q has an item without a name", cat.Name)
			}
			key := domain.ItemKey{Category: cat.Name, Item: it.Name}
			if _, dup := c.index[key]; dup {
				return nil, fmt.Errorf("duplicate item %q in category %q", it.Name, cat.Name)
			}
			c.index[key] = it
			items = append(items, it)
		}
		c.categories = append(c.categories, Category{Name: cat.Name, Items: items})
	}
	return c, nil
}

// Categories returns a copy of the categories in declaration order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{Name: cat.Name, Items: append([]Item(nil), cat.Items...)}
	}
	return out
}

func (c *Catalog) CategoryNames() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

func (c *Catalog) HasCategory(name string) bool {
	for _, cat := range c.categories {
		if cat.Name == name {
			return true
		}
	}
	return false
}

func (c *Catalog) Lookup(key domain.ItemKey) (Item, bool) {
	it, ok := c.index[key]
	return it, ok
}

func (c *Catalog) Contains(key domain.ItemKey) bool {
	_, ok := c.index[key]
	return ok
}

// Len is the number of items across all categories.
func (c *Catalog) Len() int {
	return len(c.index)
}
