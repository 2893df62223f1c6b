// Package mapview describes what the browser-side map surface should draw.
// The surface itself is an opaque canvas; this package only produces view
// descriptors and owns the one-time marker icon setup.
package mapview

import (
	"sync"
	"sync/atomic"

	"task-wizard/internal/taskform"
)

// Default center (Bangkok) used when no point has been picked yet.
const (
	DefaultLat = 13.7563
	DefaultLng = 100.5018

	PickerZoom  = 15
	PreviewZoom = 15
	// FocusZoom is used after a search or locate-me moved the point.
	FocusZoom = 16
)

const (
	TileURLTemplate = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	Attribution     = "&copy; OpenStreetMap contributors"
)

// IconSet is the default marker icon configuration shared by every map.
type IconSet struct {
	IconURL       string `json:"iconUrl"`
	IconRetinaURL string `json:"iconRetinaUrl"`
	ShadowURL     string `json:"shadowUrl"`
	IconSize      [2]int `json:"iconSize"`
	IconAnchor    [2]int `json:"iconAnchor"`
	PopupAnchor   [2]int `json:"popupAnchor"`
	ShadowSize    [2]int `json:"shadowSize"`
}

var (
	iconsOnce sync.Once
	icons     IconSet
)

// InitIcons performs the process-wide marker icon setup. It is idempotent;
// every call returns the same IconSet.
func InitIcons() IconSet {
	iconsOnce.Do(func() {
		const base = "https://unpkg.com/leaflet@1.9.4/dist/images/"
		icons = IconSet{
			IconURL:       base + "marker-icon.png",
			IconRetinaURL: base + "marker-icon-2x.png",
			ShadowURL:     base + "marker-shadow.png",
			IconSize:      [2]int{25, 41},
			IconAnchor:    [2]int{12, 41},
			PopupAnchor:   [2]int{1, -34},
			ShadowSize:    [2]int{41, 41},
		}
	})
	return icons
}

// Marker is a point marker on the surface.
type Marker struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Draggable bool    `json:"draggable"`
}

// View is the descriptor the surface renders.
type View struct {
	Center       taskform.Coordinate `json:"center"`
	Zoom         int                 `json:"zoom"`
	Marker       *Marker             `json:"marker,omitempty"`
	Interactive  bool                `json:"interactive"`
	ZoomControl  string              `json:"zoomControl,omitempty"`
	TileURL      string              `json:"tileUrl"`
	Attribution  string              `json:"attribution,omitempty"`
	Icons        IconSet             `json:"icons"`
	MeasureEpoch uint64              `json:"measureEpoch"`
}

// PickerView is the interactive view: draggable marker on the point, zoom
// control bottom-right, clicks enabled.
func PickerView(point taskform.Coordinate, zoom int) View {
	return View{
		Center:      point,
		Zoom:        zoom,
		Marker:      &Marker{Lat: point.Lat, Lng: point.Lng, Draggable: true},
		Interactive: true,
		ZoomControl: "bottomright",
		TileURL:     TileURLTemplate,
		Attribution: Attribution,
		Icons:       InitIcons(),
	}
}

// PreviewView is the static thumbnail of a committed location. Without a
// point it is centred on the default location and carries no marker.
func PreviewView(loc taskform.LocationInfo) View {
	v := View{
		Center:  taskform.Coordinate{Lat: DefaultLat, Lng: DefaultLng},
		Zoom:    PreviewZoom,
		TileURL: TileURLTemplate,
		Icons:   InitIcons(),
	}
	if p, ok := loc.Point(); ok {
		v.Center = p
		v.Marker = &Marker{Lat: p.Lat, Lng: p.Lng}
	}
	return v
}

// Surface tracks re-measure requests for one hosted map. The hosting UI
// calls Resized whenever the container changes size; the surface
// re-measures when its epoch moves.
type Surface struct {
	epoch    atomic.Uint64
	released atomic.Bool
}

// NewSurface returns a live surface handle.
func NewSurface() *Surface {
	InitIcons()
	return &Surface{}
}

// Resized records a container size change and returns the new epoch.
func (s *Surface) Resized() uint64 {
	return s.epoch.Add(1)
}

// Epoch is the current re-measure generation.
func (s *Surface) Epoch() uint64 {
	return s.epoch.Load()
}

// Release frees the surface. It reports whether this call released it.
func (s *Surface) Release() bool {
	return s.released.CompareAndSwap(false, true)
}

// Released reports whether the surface has been freed.
func (s *Surface) Released() bool {
	return s.released.Load()
}
