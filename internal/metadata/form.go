package metadata

// Form is a named presentation definition scoped to one table. FormXML is a
// heavy detail blob fetched separately from the summary listing; empty means
// not yet fetched.
type Form struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	FormXML string `json:"form_xml,omitempty"`
}

// View is a named saved query scoped to one table. FetchXML is the optional
// detail blob; empty means not yet fetched.
type View struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	QueryType int    `json:"query_type"`
	FetchXML  string `json:"fetch_xml,omitempty"`
}

// FindForm returns a pointer to the form with the given id, or nil.
func FindForm(forms []Form, id string) *Form {
	for i := range forms {
		if forms[i].ID == id {
			return &forms[i]
		}
	}
	return nil
}

// FindView returns a pointer to the view with the given id, or nil.
func FindView(views []View, id string) *View {
	for i := range views {
		if views[i].ID == id {
			return &views[i]
		}
	}
	return nil
}

// DefaultView returns the view flagged as default, falling back to the first
// view in listing order. Returns nil for an empty collection.
func DefaultView(views []View) *View {
	for i := range views {
		if views[i].IsDefault {
			return &views[i]
		}
	}
	if len(views) > 0 {
		return &views[0]
	}
	return nil
}
