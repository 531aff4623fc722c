package session

import "dvexport/internal/metadata"

// DefaultAttributeSelection is pre-selected for a table that has no saved
// attribute choices, intersected with what the table actually has.
var DefaultAttributeSelection = []string{
	"createdon",
	"modifiedon",
	"createdby",
	"modifiedby",
	"ownerid",
	"statecode",
	"statuscode",
}

// reconcileAttributes computes a table's attribute selection from a fresh
// attribute list and whatever was saved before. Saved names that no longer
// exist are dropped without comment. Required attributes are always in. When
// nothing was ever saved, the defaults (plus any rule matches) seed the
// selection. Pure: the inputs are never mutated.
func reconcileAttributes(table metadata.Table, attrs []metadata.Attribute, saved []string, rules []SelectionRule) map[string]bool {
	selected := make(map[string]bool, len(saved)+4)

	if len(saved) > 0 {
		for _, name := range saved {
			if metadata.HasAttribute(attrs, name) {
				selected[name] = true
			}
		}
	} else {
		for _, name := range DefaultAttributeSelection {
			if metadata.HasAttribute(attrs, name) {
				selected[name] = true
			}
		}
		for _, rule := range rules {
			if !rule.AppliesTo(table.LogicalName) {
				continue
			}
			for _, attr := range attrs {
				if rule.Match(attr) {
					selected[attr.LogicalName] = true
				}
			}
		}
	}

	// Primary id and name are in regardless of what was saved or fetched.
	for _, name := range table.RequiredAttributes() {
		selected[name] = true
	}
	return selected
}

// chooseForm resolves a table's form choice: the saved form when it still
// exists, else the first form, else "".
func chooseForm(forms []metadata.Form, savedID string) string {
	if savedID != "" && metadata.FindForm(forms, savedID) != nil {
		return savedID
	}
	if len(forms) > 0 {
		return forms[0].ID
	}
	return ""
}

// chooseView resolves a table's view choice: the saved view when it still
// exists, else the default-flagged view, else the first view, else "".
func chooseView(views []metadata.View, savedID string) string {
	if savedID != "" && metadata.FindView(views, savedID) != nil {
		return savedID
	}
	if v := metadata.DefaultView(views); v != nil {
		return v.ID
	}
	return ""
}
