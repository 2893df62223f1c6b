package taskform

import (
	"task-wizard/internal/refdata"
)

// Labels used on a collapsed drop-off card when a field is still empty.
const (
	NoLocationLabel   = "No location set"
	NoContactLabel    = "No contact set"
	NoParcelTypeLabel = "No parcel type"
)

// LocationLabel is the display name of a location: the reference label in
// list mode (raw id if unknown), the typed name in manual mode. Values kept
// from the inactive mode are never shown.
func LocationLabel(catalog *refdata.Catalog, l LocationInfo) string {
	switch l.SelectionMode {
	case SelectFromList:
		if l.SelectedLocation != "" {
			return catalog.Label(refdata.KindLocation, l.SelectedLocation)
		}
	case EnterManually:
		if l.ManualLocation != "" {
			return l.ManualLocation
		}
	}
	return NoLocationLabel
}

// ContactLabel is the display name of a contact, following the same mode
// rule as LocationLabel.
func ContactLabel(catalog *refdata.Catalog, c ContactInfo) string {
	switch c.SelectionMode {
	case SelectFromList:
		if c.SelectedName != "" {
			return catalog.Label(refdata.KindContact, c.SelectedName)
		}
	case EnterManually:
		if c.ManualName != "" {
			return c.ManualName
		}
	}
	return NoContactLabel
}

// ParcelLabel is the display name of a parcel type.
func ParcelLabel(catalog *refdata.Catalog, p ParcelDetails) string {
	if p.ParcelType == "" {
		return NoParcelTypeLabel
	}
	return catalog.Label(refdata.KindParcelType, p.ParcelType)
}

// DropOffCard is the summary shown for a collapsed drop-off.
type DropOffCard struct {
	ID             string `json:"id"`
	Number         int    `json:"number"`
	Location       string `json:"location"`
	AddressName    string `json:"addressName"`
	AddressDetails string `json:"addressDetails"`
	Description    string `json:"description"`
	Contact        string `json:"contact"`
	ContactNo      string `json:"contactNo"`
	Parcel         string `json:"parcel"`
	Remark         string `json:"remark"`
	HasImage       bool   `json:"hasImage"`
}

// Cards summarises every drop-off, numbered from 1 in list order.
func Cards(catalog *refdata.Catalog, d TaskFormData) []DropOffCard {
	cards := make([]DropOffCard, 0, len(d.DropOffs))
	for i, drop := range d.DropOffs {
		cards = append(cards, DropOffCard{
			ID:             drop.ID,
			Number:         i + 1,
			Location:       LocationLabel(catalog, drop.Location),
			AddressName:    orDefault(drop.Location.AddressName, "Address Name"),
			AddressDetails: orDefault(drop.Location.AddressDetails, "No address details available"),
			Description:    orDefault(drop.Location.LocationDescription, "No location description available"),
			Contact:        ContactLabel(catalog, drop.Contact),
			ContactNo:      orDefault(drop.Contact.ContactNo, "No contact no."),
			Parcel:         ParcelLabel(catalog, drop.Parcel),
			Remark:         orDefault(drop.Parcel.Remark, "(No Remarks)"),
			HasImage:       drop.Parcel.ImagePreview != "",
		})
	}
	return cards
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
