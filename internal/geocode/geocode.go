// Package geocode resolves coordinates to human readable addresses and free
// text queries to coordinates.
//
// Lookups are best effort. Callers are expected to degrade (see
// FormatCoordinate) rather than surface failures to the operator.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"task-wizard/internal/taskform"
)

// ErrNoAddress is returned when a reverse lookup yields nothing usable.
var ErrNoAddress = errors.New("no address for coordinate")

// DefaultAddressName is shown when a lookup found a place without a name.
const DefaultAddressName = "Address Name"

// Address is the result of a reverse lookup: a short name and the long
// descriptive address.
type Address struct {
	Name    string `json:"name"`
	Details string `json:"details"`
}

// Resolver is the coordinate resolution service.
type Resolver interface {
	// Reverse resolves a coordinate to an address.
	Reverse(ctx context.Context, lat, lng float64) (Address, error)
	// Forward resolves a query to its best matching coordinate. found is
	// false when the query matched nothing.
	Forward(ctx context.Context, query string) (c taskform.Coordinate, found bool, err error)
}

// FormatCoordinate renders a coordinate the way it is shown when no address
// is available.
func FormatCoordinate(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

// shortName picks the display name of a place: its own name, else the first
// component of the full address.
func shortName(name, displayName string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if first, _, _ := strings.Cut(displayName, ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	return DefaultAddressName
}

// Static is an offline resolver. Reverse answers with the formatted
// coordinate; Forward matches queries against a fixed gazetteer.
type Static struct {
	Places map[string]taskform.Coordinate
	// Names optionally labels known coordinates, keyed by FormatCoordinate.
	Names map[string]Address
}

func (s Static) Reverse(_ context.Context, lat, lng float64) (Address, error) {
	key := FormatCoordinate(lat, lng)
	if addr, ok := s.Names[key]; ok {
		return addr, nil
	}
	return Address{Name: key}, nil
}

func (s Static) Forward(_ context.Context, query string) (taskform.Coordinate, bool, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	for name, c := range s.Places {
		if strings.ToLower(name) == q {
			return c, true, nil
		}
	}
	return taskform.Coordinate{}, false, nil
}
