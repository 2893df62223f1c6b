// Package review builds the read-only confirmation view of a task. Every
// stored reference is resolved to its label, falling back to the raw value
// when the reference data does not know it.
package review

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"task-wizard/internal/geocode"
	"task-wizard/internal/refdata"
	"task-wizard/internal/taskform"
)

const (
	Title              = "Pick and Drop: Confirmation"
	DefaultUnitName    = "Task Name"
	PointOnMap         = "Point on Map"
	NoInstructions     = "No specific instructions"
	NotSpecified       = "Not specified"
	NoDescription      = "No description provided"
	Missing            = "-"
	defaultPreviewPath = "/api/previews/"
)

//go:embed templates/*.html
var templates embed.FS

var tmpl = template.Must(template.ParseFS(templates, "templates/*.html"))

// LocationCard is a pick-up or drop-off location as shown on the review.
type LocationCard struct {
	Label        string `json:"label"`
	AddressName  string `json:"addressName"`
	Details      string `json:"addressDetails"`
	Instructions string `json:"instructions"`
}

// ContactCard is the contact shown under a location.
type ContactCard struct {
	Name      string `json:"name"`
	ContactNo string `json:"contactNo"`
}

// Unit is one drop-off rendered as a task unit.
type Unit struct {
	ID             string       `json:"id"`
	Number         string       `json:"number"`
	Heading        string       `json:"heading"`
	Mode           string       `json:"mode"`
	TaskType       string       `json:"taskType"`
	Description    string       `json:"description"`
	Pickup         LocationCard `json:"pickup"`
	PickupContact  ContactCard  `json:"pickupContact"`
	DropOff        LocationCard `json:"dropOff"`
	DropOffContact ContactCard  `json:"dropOffContact"`
	ParcelType     string       `json:"parcelType"`
	Remark         string       `json:"remark"`
	ImagePreview   string       `json:"imagePreview,omitempty"`
}

// Review is the whole confirmation view.
type Review struct {
	Title string `json:"title"`
	Units []Unit `json:"units"`
	Total int    `json:"total"`
}

// Build resolves data into a review. Units are numbered "01".."N" in the
// stored drop-off order.
func Build(data taskform.TaskFormData, catalog *refdata.Catalog) Review {
	mode := strings.ReplaceAll(string(data.TaskMode), "-", " ")
	taskType := NotSpecified
	if data.TaskType != "" {
		taskType = catalog.Label(refdata.KindTaskType, data.TaskType)
	}
	name := strings.TrimSpace(data.TaskName)
	if name == "" {
		name = DefaultUnitName
	}
	pickup := locationCard(catalog, data.PickupLocation)
	pickupContact := contactCard(catalog, data.PickupContact)

	r := Review{Title: Title, Units: make([]Unit, 0, len(data.DropOffs)), Total: len(data.DropOffs)}
	for i, drop := range data.DropOffs {
		number := fmt.Sprintf("%02d", i+1)
		r.Units = append(r.Units, Unit{
			ID:             drop.ID,
			Number:         number,
			Heading:        name + " - " + number,
			Mode:           mode,
			TaskType:       taskType,
			Description:    orDefault(data.Description, NoDescription),
			Pickup:         pickup,
			PickupContact:  pickupContact,
			DropOff:        locationCard(catalog, drop.Location),
			DropOffContact: contactCard(catalog, drop.Contact),
			ParcelType:     parcelLabel(catalog, drop.Parcel.ParcelType),
			Remark:         orDefault(drop.Parcel.Remark, Missing),
			ImagePreview:   drop.Parcel.ImagePreview,
		})
	}
	return r
}

func locationCard(catalog *refdata.Catalog, loc taskform.LocationInfo) LocationCard {
	card := LocationCard{
		Label:        taskform.LocationLabel(catalog, loc),
		AddressName:  orDefault(loc.AddressName, PointOnMap),
		Details:      loc.AddressDetails,
		Instructions: orDefault(loc.LocationDescription, NoInstructions),
	}
	if card.Details == "" {
		card.Details = Missing
		if p, ok := loc.Point(); ok {
			card.Details = geocode.FormatCoordinate(p.Lat, p.Lng)
		}
	}
	return card
}

func contactCard(catalog *refdata.Catalog, c taskform.ContactInfo) ContactCard {
	return ContactCard{
		Name:      taskform.ContactLabel(catalog, c),
		ContactNo: orDefault(c.ContactNo, Missing),
	}
}

func parcelLabel(catalog *refdata.Catalog, id string) string {
	if id == "" {
		return Missing
	}
	return catalog.Label(refdata.KindParcelType, id)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Render writes r as an HTML fragment. Image previews are linked under
// previewPath; an empty previewPath uses the API default.
func Render(w io.Writer, r Review, previewPath string) error {
	if previewPath == "" {
		previewPath = defaultPreviewPath
	}
	err := tmpl.ExecuteTemplate(w, "review.html", struct {
		Review
		PreviewPath string
	}{r, previewPath})
	if err != nil {
		return fmt.Errorf("render review: %w", err)
	}
	return nil
}
