package refdata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk layout of a reference data override file:
//
//	tables:
//	  location:
//	    - value: office-bkk
//	      label: Head office
//	  contact:
//	    - value: somchai
//	      label: Somchai
//	      phone: 081-234-5678
//	      email: somchai@company.com
type fileFormat struct {
	Tables map[string][]Option `yaml:"tables"`
}

// LoadFile reads a YAML override file. Every table present in the file
// replaces the corresponding default table wholesale; absent tables keep
// their defaults.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference data: %w", err)
	}
	return Parse(data)
}

// Parse is LoadFile without the filesystem.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing reference data: %w", err)
	}

	tables := defaultTables()
	for name, opts := range f.Tables {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		tables[kind] = opts
	}
	return New(tables)
}
