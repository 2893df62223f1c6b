package mappicker

import (
	"context"

	"task-wizard/internal/geocode"
	"task-wizard/internal/mapview"
	"task-wizard/internal/taskform"
)

// Prompts shown on an empty preview.
const (
	PickupPrompt  = "Select the pick up location"
	DropOffPrompt = "Select the drop off location"
)

// Preview is the non-interactive summary of a committed location shown in
// the form before the picker is opened.
type Preview struct {
	HasPin  bool         `json:"hasPin"`
	Prompt  string       `json:"prompt,omitempty"`
	Name    string       `json:"addressName,omitempty"`
	Details string       `json:"addressDetails,omitempty"`
	View    mapview.View `json:"view"`
}

// PreviewOf renders the committed point of loc. The in-progress state of
// an open picker never shows here.
func PreviewOf(loc taskform.LocationInfo, prompt string) Preview {
	pv := Preview{View: mapview.PreviewView(loc)}
	p, ok := loc.Point()
	if !ok {
		pv.Prompt = prompt
		return pv
	}
	pv.HasPin = true
	pv.Name = loc.AddressName
	if pv.Name == "" {
		pv.Name = geocode.DefaultAddressName
	}
	pv.Details = loc.AddressDetails
	if pv.Details == "" {
		pv.Details = geocode.FormatCoordinate(p.Lat, p.Lng)
	}
	return pv
}

// OpenFor starts a picker on a committed location, seeded with its
// address cache.
func OpenFor(loc taskform.LocationInfo, resolver geocode.Resolver, opts ...Option) *Picker {
	var initial *taskform.Coordinate
	if p, ok := loc.Point(); ok {
		initial = &p
	}
	opts = append([]Option{WithAddress(loc.AddressName, loc.AddressDetails)}, opts...)
	return Open(initial, resolver, opts...)
}

// Apply commits a confirmed selection to a location.
func (s Selection) Apply(loc taskform.LocationInfo) taskform.LocationInfo {
	return loc.WithPoint(s.Lat, s.Lng, s.Name, s.Details)
}

// ReportedPosition is a device position reported by the browser. A nil
// Coordinate or Denied means the device refused or has no location support.
type ReportedPosition struct {
	Coordinate *taskform.Coordinate `json:"coordinate,omitempty"`
	Denied     bool                 `json:"denied,omitempty"`
}

// CurrentPosition implements Locator.
func (r ReportedPosition) CurrentPosition(context.Context) (taskform.Coordinate, error) {
	if r.Denied || r.Coordinate == nil {
		return taskform.Coordinate{}, ErrLocationUnavailable
	}
	return *r.Coordinate, nil
}
