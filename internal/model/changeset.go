package model

// ChangeSet is the minimal set of fields that differ between an edit
// buffer and the item it was seeded from. A nil field is unchanged.
type ChangeSet struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`

	// Status travels on its own endpoint, so it is never part of the
	// content patch body.
	Status *Status `json:"-"`
}

// HasContent reports whether any of title, description or image changed.
func (cs ChangeSet) HasContent() bool {
	return cs.Title != nil || cs.Description != nil || cs.ImageURL != nil
}

// HasStatus reports whether the status changed.
func (cs ChangeSet) HasStatus() bool { return cs.Status != nil }

// Empty reports whether nothing changed at all.
func (cs ChangeSet) Empty() bool { return !cs.HasContent() && !cs.HasStatus() }

// Diff builds the change-set that turns orig into edited.
func Diff(orig, edited Item) ChangeSet {
	var cs ChangeSet
	if edited.Title != orig.Title {
		v := edited.Title
		cs.Title = &v
	}
	if edited.Description != orig.Description {
		v := edited.Description
		cs.Description = &v
	}
	if edited.ImageURL != orig.ImageURL {
		v := edited.ImageURL
		cs.ImageURL = &v
	}
	if edited.Status != orig.Status {
		v := edited.Status
		cs.Status = &v
	}
	return cs
}
