// Package refdata holds the static reference tables used to populate choice
// lists and to resolve stored identifiers back to display labels.
//
// A Catalog is built once at start-up (defaults or a YAML override file) and
// is read-only afterwards, so it is safe to share between goroutines.
package refdata

import (
	"fmt"
	"strings"
)

// Kind names one reference table.
type Kind string

const (
	KindTaskType         Kind = "task-type"
	KindLocation         Kind = "location"
	KindContact          Kind = "contact"
	KindParcelType       Kind = "parcel-type"
	KindOrganizationType Kind = "organization-type"
)

// Kinds lists every table in display order.
var Kinds = []Kind{
	KindTaskType,
	KindLocation,
	KindContact,
	KindParcelType,
	KindOrganizationType,
}

// ParseKind validates a kind name coming from a request or a config file.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown reference kind: %q", s)
}

// Option is one selectable entry of a table.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
	Phone string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Contact is a known contact with the details used to auto-fill forms.
type Contact struct {
	Value string
	Label string
	Phone string
	Email string
}

// Catalog is the immutable set of reference tables.
type Catalog struct {
	tables map[Kind][]Option
	index  map[Kind]map[string]int
}

// New builds a catalog from the given tables. Kinds not present are empty.
func New(tables map[Kind][]Option) (*Catalog, error) {
	c := &Catalog{
		tables: make(map[Kind][]Option, len(Kinds)),
		index:  make(map[Kind]map[string]int, len(Kinds)),
	}
	for _, kind := range Kinds {
		opts := tables[kind]
		idx := make(map[string]int, len(opts))
		copied := make([]Option, 0, len(opts))
		for _, opt := range opts {
			if strings.TrimSpace(opt.Value) == "" {
				return nil, fmt.Errorf("%s: option with empty value", kind)
			}
			if _, dup := idx[opt.Value]; dup {
				return nil, fmt.Errorf("%s: duplicate value %q", kind, opt.Value)
			}
			idx[opt.Value] = len(copied)
			copied = append(copied, opt)
		}
		c.tables[kind] = copied
		c.index[kind] = idx
	}
	return c, nil
}

// Options returns the ordered choices of a table. The slice is a copy.
func (c *Catalog) Options(kind Kind) []Option {
	opts := c.tables[kind]
	out := make([]Option, len(opts))
	copy(out, opts)
	return out
}

// Lookup finds an option by its stored identifier.
func (c *Catalog) Lookup(kind Kind, id string) (Option, bool) {
	i, ok := c.index[kind][id]
	if !ok {
		return Option{}, false
	}
	return c.tables[kind][i], true
}

// Label resolves an identifier to its display label. Unknown identifiers
// (stale or manually entered) come back unchanged.
func (c *Catalog) Label(kind Kind, id string) string {
	if opt, ok := c.Lookup(kind, id); ok {
		return opt.Label
	}
	return id
}

// Contact returns the registered details of a known contact.
func (c *Catalog) Contact(id string) (Contact, bool) {
	opt, ok := c.Lookup(KindContact, id)
	if !ok {
		return Contact{}, false
	}
	return Contact{Value: opt.Value, Label: opt.Label, Phone: opt.Phone, Email: opt.Email}, true
}
