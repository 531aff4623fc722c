package session

import (
	"fmt"
	"log"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"dvexport/internal/config"
	"dvexport/internal/metadata"
)

// SelectionRule pre-selects attributes by expression when a table has no
// saved selection yet. The expression sees one attribute at a time and must
// return a bool; true means select it.
type SelectionRule struct {
	table string
	prog  *vm.Program
}

// CompileRules compiles the configured selection rules. A rule that fails to
// compile is an error; rules run too often to tolerate lazy failures.
func CompileRules(specs []config.SelectionRuleSpec) ([]SelectionRule, error) {
	rules := make([]SelectionRule, 0, len(specs))
	for _, spec := range specs {
		prog, err := expr.Compile(spec.Expression, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile selection rule for %q: %w", spec.Table, err)
		}
		rules = append(rules, SelectionRule{table: spec.Table, prog: prog})
	}
	return rules, nil
}

// AppliesTo reports whether the rule targets the given table. An empty or
// "*" table means the rule applies everywhere.
func (r SelectionRule) AppliesTo(table string) bool {
	return r.table == "" || r.table == "*" || r.table == table
}

// Match evaluates the rule against one attribute. Evaluation errors count as
// no match; the attribute can still be picked by hand.
func (r SelectionRule) Match(attr metadata.Attribute) bool {
	env := map[string]any{
		"logical_name": attr.LogicalName,
		"display_name": attr.DisplayName,
		"type":         attr.Type,
		"is_custom":    attr.IsCustom,
	}
	result, err := expr.Run(r.prog, env)
	if err != nil {
		log.Printf("WARN: selection rule on %s: %v", attr.LogicalName, err)
		return false
	}
	matched, ok := result.(bool)
	return ok && matched
}
