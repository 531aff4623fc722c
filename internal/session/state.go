package session

import "dvexport/internal/metadata"

// LoadState tracks where a table stands in fetching one kind of resource.
type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ResourceKind names the two fetchable resource families of a table.
type ResourceKind int

const (
	// KindAttributes covers the table's attribute list.
	KindAttributes ResourceKind = iota
	// KindFormsViews covers the table's forms and views, fetched together.
	KindFormsViews
)

func (k ResourceKind) String() string {
	if k == KindAttributes {
		return "attributes"
	}
	return "forms_views"
}

// Result carries the outcome of one table's fetch. A non-nil Err marks the
// whole result failed; the payload fields are then ignored.
type Result struct {
	Attributes []metadata.Attribute
	Forms      []metadata.Form
	Views      []metadata.View
	Err        error
}
