package metadata

import "testing"

const sampleFormXML = `<form>
  <tabs>
    <tab name="general">
      <columns>
        <column>
          <sections>
            <section>
              <rows>
                <row><cell><control id="name" datafieldname="Name" classid="{1}"/></cell></row>
                <row><cell><control id="created" datafieldname="createdon"/></cell></row>
                <row><cell><control id="spacer"/></cell></row>
              </rows>
            </section>
          </sections>
        </column>
      </columns>
    </tab>
  </tabs>
</form>`

func TestFormFields(t *testing.T) {
	fields := FormFields(sampleFormXML)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d: %v", len(fields), fields)
	}
	if !fields["name"] {
		t.Error("expected lower-cased field name")
	}
	if !fields["createdon"] {
		t.Error("expected createdon field")
	}
}

func TestFormFields_Empty(t *testing.T) {
	if fields := FormFields(""); len(fields) != 0 {
		t.Fatalf("expected empty set, got %v", fields)
	}
}

func TestFormFields_Malformed(t *testing.T) {
	// Parse stops at the broken element; fields seen before it are kept.
	xml := `<form><control datafieldname="accountid"/><control datafieldname=`
	fields := FormFields(xml)
	if !fields["accountid"] {
		t.Fatalf("expected fields collected before parse error, got %v", fields)
	}
}
