package metadata

import "testing"

func testTable() Table {
	return Table{
		LogicalName:          "account",
		DisplayName:          "Account",
		SchemaName:           "Account",
		ObjectTypeCode:       1,
		PrimaryIDAttribute:   "accountid",
		PrimaryNameAttribute: "name",
	}
}

func TestRequiredAttributes(t *testing.T) {
	tbl := testTable()
	required := tbl.RequiredAttributes()
	if len(required) != 2 {
		t.Fatalf("expected 2 required attributes, got %d", len(required))
	}
	if required[0] != "accountid" || required[1] != "name" {
		t.Fatalf("unexpected required attributes: %v", required)
	}
}

func TestRequiredAttributes_SameIDAndName(t *testing.T) {
	tbl := Table{LogicalName: "oddity", PrimaryIDAttribute: "oddityid", PrimaryNameAttribute: "oddityid"}
	required := tbl.RequiredAttributes()
	if len(required) != 1 {
		t.Fatalf("expected deduplicated required attributes, got %v", required)
	}
}

func TestIsRequiredAttribute(t *testing.T) {
	tbl := testTable()
	if !tbl.IsRequiredAttribute("accountid") {
		t.Error("accountid should be required")
	}
	if !tbl.IsRequiredAttribute("name") {
		t.Error("name should be required")
	}
	if tbl.IsRequiredAttribute("createdon") {
		t.Error("createdon should not be required")
	}
	if tbl.IsRequiredAttribute("") {
		t.Error("empty name should never be required")
	}
}

func TestFindAttribute(t *testing.T) {
	attrs := []Attribute{
		{LogicalName: "accountid", Type: "Uniqueidentifier"},
		{LogicalName: "name", Type: "String"},
	}
	if a := FindAttribute(attrs, "name"); a == nil || a.Type != "String" {
		t.Fatalf("expected to find name, got %+v", a)
	}
	if a := FindAttribute(attrs, "missing"); a != nil {
		t.Fatalf("expected nil for missing attribute, got %+v", a)
	}
	if !HasAttribute(attrs, "accountid") {
		t.Error("expected HasAttribute to report accountid")
	}
}

func TestDefaultView(t *testing.T) {
	views := []View{
		{ID: "v1", Name: "Alpha"},
		{ID: "v2", Name: "Beta", IsDefault: true},
	}
	if v := DefaultView(views); v == nil || v.ID != "v2" {
		t.Fatalf("expected default-flagged view v2, got %+v", v)
	}

	// No default flag: first in listing order wins.
	views[1].IsDefault = false
	if v := DefaultView(views); v == nil || v.ID != "v1" {
		t.Fatalf("expected first view v1, got %+v", v)
	}

	if v := DefaultView(nil); v != nil {
		t.Fatalf("expected nil for empty collection, got %+v", v)
	}
}
