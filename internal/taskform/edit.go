package taskform

import (
	"task-wizard/internal/refdata"
)

// Location edits. Switching selection mode keeps the values entered under
// the other mode so toggling back restores them.

func (l LocationInfo) WithSelectionMode(m SelectionMode) LocationInfo {
	l.SelectionMode = m
	return l
}

func (l LocationInfo) WithSelectedLocation(id string) LocationInfo {
	l.SelectedLocation = id
	return l
}

func (l LocationInfo) WithManualLocation(name string) LocationInfo {
	l.ManualLocation = name
	return l
}

func (l LocationInfo) WithDescription(desc string) LocationInfo {
	l.LocationDescription = desc
	return l
}

// WithAddress replaces the derived address cache, e.g. after a manual edit.
func (l LocationInfo) WithAddress(name, details string) LocationInfo {
	l.AddressName = name
	l.AddressDetails = details
	return l
}

// WithPoint commits a picked coordinate together with its resolved address.
func (l LocationInfo) WithPoint(lat, lng float64, name, details string) LocationInfo {
	l.Lat = &lat
	l.Lng = &lng
	l.AddressName = name
	l.AddressDetails = details
	return l
}

// WithoutPoint clears the coordinate and its address cache.
func (l LocationInfo) WithoutPoint() LocationInfo {
	l.Lat = nil
	l.Lng = nil
	l.AddressName = ""
	l.AddressDetails = ""
	return l
}

// Contact edits.

func (c ContactInfo) WithSelectionMode(m SelectionMode) ContactInfo {
	c.SelectionMode = m
	return c
}

// SelectContact picks a reference contact. A known contact overwrites
// ContactNo and Email with its registered details; both stay editable
// afterwards. An unknown or cleared id only changes SelectedName.
func (c ContactInfo) SelectContact(catalog *refdata.Catalog, id string) ContactInfo {
	c.SelectedName = id
	if known, ok := catalog.Contact(id); ok {
		c.ContactNo = known.Phone
		c.Email = known.Email
	}
	return c
}

func (c ContactInfo) WithManualName(name string) ContactInfo {
	c.ManualName = name
	return c
}

func (c ContactInfo) WithContactNo(no string) ContactInfo {
	c.ContactNo = no
	return c
}

func (c ContactInfo) WithEmail(email string) ContactInfo {
	c.Email = email
	return c
}

func (c ContactInfo) WithOrganizationType(id string) ContactInfo {
	c.OrganizationType = id
	return c
}

// Parcel edits.

// PreviewSource derives and releases image preview handles.
type PreviewSource interface {
	CreatePreview(fileID string) (string, error)
	Revoke(previewID string)
}

func (p ParcelDetails) WithParcelType(id string) ParcelDetails {
	p.ParcelType = id
	return p
}

func (p ParcelDetails) WithRemark(remark string) ParcelDetails {
	p.Remark = remark
	return p
}

// WithImage attaches a new image. The previous preview is released only
// once the new one exists; on failure p is returned unchanged.
func (p ParcelDetails) WithImage(previews PreviewSource, fileID string) (ParcelDetails, error) {
	preview, err := previews.CreatePreview(fileID)
	if err != nil {
		return p, err
	}
	if p.ImagePreview != "" {
		previews.Revoke(p.ImagePreview)
	}
	p.ImageFile = fileID
	p.ImagePreview = preview
	return p, nil
}

// WithoutImage detaches the image and releases its preview.
func (p ParcelDetails) WithoutImage(previews PreviewSource) ParcelDetails {
	if p.ImagePreview != "" {
		previews.Revoke(p.ImagePreview)
	}
	p.ImageFile = ""
	p.ImagePreview = ""
	return p
}

// PreviewIDs lists every preview handle referenced by d.
func (d TaskFormData) PreviewIDs() []string {
	var ids []string
	for _, drop := range d.DropOffs {
		if drop.Parcel.ImagePreview != "" {
			ids = append(ids, drop.Parcel.ImagePreview)
		}
	}
	return ids
}
