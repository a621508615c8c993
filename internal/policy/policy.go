// Package policy evaluates routing rules written as govaluate expressions.
package policy

import (
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"
)

// Decision is what a matching rule selects: an ordered list of candidate connectors.
type Decision struct {
	Connectors []string `json:"connectors" mapstructure:"connectors"`
}

// Rule is one routing rule. Lower Priority values are evaluated first; rules
// with equal priority keep their declaration order.
type Rule struct {
	ID         string   `json:"id" mapstructure:"id"`
	Expression string   `json:"expression" mapstructure:"expression"`
	Priority   int      `json:"priority" mapstructure:"priority"`
	Decision   Decision `json:"decision" mapstructure:"decision"`
}

type compiledRule struct {
	Rule
	expr *govaluate.EvaluableExpression
}

// Parameters are the variables a rule expression may reference.
type Parameters map[string]interface{}

type RuleEngine struct {
	rules []compiledRule
}

// NewRuleEngine compiles every rule up front so a bad expression is rejected
// at load time rather than on the first payment.
func NewRuleEngine(rules []Rule) (*RuleEngine, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, expr: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool { return compiled[i].Priority < compiled[j].Priority })
	return &RuleEngine{rules: compiled}, nil
}

func (e *RuleEngine) Len() int { return len(e.rules) }

// Evaluate returns the decisions of every matching rule, in evaluation order.
// A rule whose expression does not yield a boolean is an error.
func (e *RuleEngine) Evaluate(params Parameters) ([]Decision, error) {
	var matched []Decision
	for _, r := range e.rules {
		result, err := r.expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("evaluating rule ID '%s': %w", r.ID, err)
		}
		ok, isBool := result.(bool)
		if !isBool {
			return nil, fmt.Errorf("rule ID '%s' did not evaluate to a boolean (got %T)", r.ID, result)
		}
		if ok {
			matched = append(matched, r.Decision)
		}
	}
	return matched, nil
}

// First returns the decision of the highest-priority matching rule.
func (e *RuleEngine) First(params Parameters) (Decision, bool, error) {
	matched, err := e.Evaluate(params)
	if err != nil || len(matched) == 0 {
		return Decision{}, false, err
	}
	return matched[0], true, nil
}
