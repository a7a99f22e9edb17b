package fuzzy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is an ordered entity list loaded from YAML.
//
// Example file:
//
//	name: organes
//	entities:
//	  - id: C22
//	    label: Foie
//	  - id: C16
//	    label: Estomac (cardia)
type Catalog struct {
	Name     string   `yaml:"name"`
	Entities []Entity `yaml:"entities"`
}

// LoadCatalog reads a catalog file. Entity order is preserved.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML and checks that every entity has an
// id and a label and that ids are unique.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		if e.ID == "" || e.Label == "" {
			return nil, fmt.Errorf("catalog %q: entity %d needs both id and label", c.Name, i)
		}
		if e.ID == NoneID {
			return nil, fmt.Errorf("catalog %q: id %q is reserved", c.Name, NoneID)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("catalog %q: duplicate id %q", c.Name, e.ID)
		}
		seen[e.ID] = true
	}
	return &c, nil
}

// Match runs Match against the catalog's entities.
func (c *Catalog) Match(query string) Result {
	return Match(query, c.Entities)
}
