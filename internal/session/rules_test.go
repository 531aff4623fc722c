package session

import (
	"testing"

	"dvexport/internal/config"
	"dvexport/internal/metadata"
)

func TestCompileRules_Invalid(t *testing.T) {
	_, err := CompileRules([]config.SelectionRuleSpec{
		{Table: "account", Expression: "is_custom &&"},
	})
	if err == nil {
		t.Fatal("expected a compile error")
	}
}

func TestSelectionRule_Match(t *testing.T) {
	rules, err := CompileRules([]config.SelectionRuleSpec{
		{Expression: `is_custom || type == "Money"`},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	rule := rules[0]

	if !rule.Match(metadata.Attribute{LogicalName: "cus_x", IsCustom: true}) {
		t.Error("custom attribute should match")
	}
	if !rule.Match(metadata.Attribute{LogicalName: "revenue", Type: "Money"}) {
		t.Error("money attribute should match")
	}
	if rule.Match(metadata.Attribute{LogicalName: "name", Type: "String"}) {
		t.Error("plain attribute should not match")
	}
}

func TestSelectionRule_SeedsSelection(t *testing.T) {
	rules, err := CompileRules([]config.SelectionRuleSpec{
		{Table: "account", Expression: "is_custom"},
		{Table: "contact", Expression: `type == "Money"`},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got := reconcileAttributes(accountTable(), accountAttrs(), nil, rules)
	if !got["cus_custom"] {
		t.Error("rule for the table should seed its custom attribute")
	}
	// The contact rule does not apply to account.
	if got["revenue"] {
		t.Error("rule scoped to another table leaked in")
	}

	// Rules only seed tables with no saved selection.
	saved := reconcileAttributes(accountTable(), accountAttrs(), []string{"revenue"}, rules)
	if saved["cus_custom"] {
		t.Error("rules should not run once a selection was saved")
	}
}
