package printer

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk printer configuration file.
//
//	printers:
//	  - id: 1
//	    name: Office
//	    spool_name: office_laser
//	    priority: 1
//	    price_one_sided: 0.05
//	    price_two_sided: 0.08
type Catalog struct {
	Printers []Printer `yaml:"printers"`
}

// LoadCatalog reads and validates a YAML printer catalog.
func LoadCatalog(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("printer catalog path is empty")
	}
	// #nosec G304 -- catalog path is operator supplied
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read printer catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML. Unknown fields are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("parse printer catalog: %w", err)
	}
	for i := range cat.Printers {
		if cat.Printers[i].ID == 0 {
			cat.Printers[i].ID = int64(i + 1)
		}
	}
	if err := Validate(cat.Printers); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Repository builds an in-memory repository from the catalog.
func (c *Catalog) Repository() *MemoryRepository {
	return NewMemoryRepository(c.Printers...)
}
