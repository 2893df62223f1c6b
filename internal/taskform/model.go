// Package taskform defines the record an operator fills in while authoring a
// pick-up / drop-off task, and the pure edit operations the sub-forms apply
// to it.
//
// Values in this package are treated as immutable: every edit returns a new
// value and leaves its receiver untouched. The wizard owns the aggregate and
// swaps it wholesale on every change.
package taskform

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// TaskMode selects the kind of job being authored.
type TaskMode string

const (
	ModePickAndDrop TaskMode = "pick-and-drop"
	ModeServiceTask TaskMode = "service-task"
)

// Valid reports whether m is a known mode.
func (m TaskMode) Valid() bool {
	return m == ModePickAndDrop || m == ModeServiceTask
}

// SelectionMode says whether a sub-form value comes from reference data or
// was typed in by the operator.
type SelectionMode string

const (
	SelectFromList SelectionMode = "list"
	EnterManually  SelectionMode = "manual"
)

// Valid reports whether m is a known selection mode.
func (m SelectionMode) Valid() bool {
	return m == SelectFromList || m == EnterManually
}

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ErrHalfCoordinate is returned when only one of lat/lng is present.
var ErrHalfCoordinate = errors.New("lat and lng must be set together")

// LocationInfo describes a pick-up or drop-off place.
//
// AddressName and AddressDetails are a display cache filled by the
// coordinate resolver or by hand; they are not authoritative. Lat and Lng
// are either both nil or both set.
type LocationInfo struct {
	SelectionMode       SelectionMode `json:"selectionMode"`
	SelectedLocation    string        `json:"selectedLocation"`
	ManualLocation      string        `json:"manualLocation"`
	LocationDescription string        `json:"locationDescription"`
	AddressName         string        `json:"addressName"`
	AddressDetails      string        `json:"addressDetails"`
	Lat                 *float64      `json:"lat"`
	Lng                 *float64      `json:"lng"`
}

// UnmarshalJSON rejects a half-set coordinate pair.
func (l *LocationInfo) UnmarshalJSON(data []byte) error {
	type plain LocationInfo
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if (p.Lat == nil) != (p.Lng == nil) {
		return ErrHalfCoordinate
	}
	*l = LocationInfo(p)
	return nil
}

// Point returns the committed coordinate, if any.
func (l LocationInfo) Point() (Coordinate, bool) {
	if l.Lat == nil || l.Lng == nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: *l.Lat, Lng: *l.Lng}, true
}

// HasPoint reports whether a coordinate has been committed.
func (l LocationInfo) HasPoint() bool {
	_, ok := l.Point()
	return ok
}

// ContactInfo identifies the person to meet at a location.
// OrganizationType is only used on drop-off contacts.
type ContactInfo struct {
	SelectionMode    SelectionMode `json:"selectionMode"`
	SelectedName     string        `json:"selectedName"`
	ManualName       string        `json:"manualName"`
	ContactNo        string        `json:"contactNo"`
	Email            string        `json:"email"`
	OrganizationType string        `json:"organizationType,omitempty"`
}

// ParcelDetails describes what is carried to a drop-off.
//
// ImageFile is an opaque attachment handle; ImagePreview is a revocable
// display handle derived from it. Empty strings mean "none".
type ParcelDetails struct {
	ParcelType   string `json:"parcelType"`
	Remark       string `json:"remark"`
	ImageFile    string `json:"imageFile"`
	ImagePreview string `json:"imagePreview"`
}

// DropOff is one destination of a task. ID is stable across edits and
// independent of the drop-off's position in the list.
type DropOff struct {
	ID       string        `json:"id"`
	Location LocationInfo  `json:"location"`
	Contact  ContactInfo   `json:"contact"`
	Parcel   ParcelDetails `json:"parcel"`
}

// TaskFormData is the aggregate record of one task being authored.
type TaskFormData struct {
	TaskMode       TaskMode     `json:"taskMode"`
	TaskName       string       `json:"taskName"`
	TaskType       string       `json:"taskType"`
	Description    string       `json:"description"`
	PickupLocation LocationInfo `json:"pickupLocation"`
	PickupContact  ContactInfo  `json:"pickupContact"`
	DropOffs       []DropOff    `json:"dropOffs"`
}

// NewLocation returns an empty location in list mode.
func NewLocation() LocationInfo {
	return LocationInfo{SelectionMode: SelectFromList}
}

// NewContact returns an empty contact in list mode.
func NewContact() ContactInfo {
	return ContactInfo{SelectionMode: SelectFromList}
}

// NewParcel returns empty parcel details.
func NewParcel() ParcelDetails {
	return ParcelDetails{}
}

// NewDropOff returns an empty drop-off with a fresh identity.
func NewDropOff() DropOff {
	return DropOff{
		ID:       uuid.NewString(),
		Location: NewLocation(),
		Contact:  NewContact(),
		Parcel:   NewParcel(),
	}
}

// NewTaskFormData returns the state a wizard starts from: pick-and-drop,
// an empty pickup and exactly one empty drop-off.
func NewTaskFormData() TaskFormData {
	return TaskFormData{
		TaskMode:       ModePickAndDrop,
		PickupLocation: NewLocation(),
		PickupContact:  NewContact(),
		DropOffs:       []DropOff{NewDropOff()},
	}
}

// Clone returns a copy that shares no mutable storage with d.
func (d TaskFormData) Clone() TaskFormData {
	out := d
	out.DropOffs = make([]DropOff, len(d.DropOffs))
	copy(out.DropOffs, d.DropOffs)
	return out
}
