package metadata

// Attribute is a field belonging to exactly one table, identified by its
// logical name (unique within the table).
type Attribute struct {
	LogicalName   string `json:"logical_name"`
	SchemaName    string `json:"schema_name"`
	DisplayName   string `json:"display_name"`
	Type          string `json:"type"`
	IsCustom      bool   `json:"is_custom"`
	RequiredLevel string `json:"required_level,omitempty"`
}

// FindAttribute returns a pointer to the attribute with the given logical
// name, or nil.
func FindAttribute(attrs []Attribute, logicalName string) *Attribute {
	for i := range attrs {
		if attrs[i].LogicalName == logicalName {
			return &attrs[i]
		}
	}
	return nil
}

// HasAttribute reports whether the collection contains the logical name.
func HasAttribute(attrs []Attribute, logicalName string) bool {
	return FindAttribute(attrs, logicalName) != nil
}

// AttributeNames returns all logical names in collection order.
func AttributeNames(attrs []Attribute) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.LogicalName
	}
	return names
}
