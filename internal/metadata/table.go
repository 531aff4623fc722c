package metadata

// Table is a selectable schema object (entity) in the remote catalog.
// Immutable once fetched within a session.
type Table struct {
	LogicalName          string `json:"logical_name"`
	DisplayName          string `json:"display_name"`
	SchemaName           string `json:"schema_name"`
	ObjectTypeCode       int    `json:"object_type_code"`
	PrimaryIDAttribute   string `json:"primary_id_attribute"`
	PrimaryNameAttribute string `json:"primary_name_attribute"`
	MetadataID           string `json:"metadata_id"`
}

// RequiredAttributes returns the attribute keys that must stay selected for
// the lifetime of the session: the primary id and primary name attributes.
func (t Table) RequiredAttributes() []string {
	var required []string
	if t.PrimaryIDAttribute != "" {
		required = append(required, t.PrimaryIDAttribute)
	}
	if t.PrimaryNameAttribute != "" && t.PrimaryNameAttribute != t.PrimaryIDAttribute {
		required = append(required, t.PrimaryNameAttribute)
	}
	return required
}

// IsRequiredAttribute reports whether name is one of the table's two
// distinguished attribute keys.
func (t Table) IsRequiredAttribute(name string) bool {
	return name != "" && (name == t.PrimaryIDAttribute || name == t.PrimaryNameAttribute)
}
