package workflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
)

// Routing conditions compile to CEL over two maps built from RequestData:
// str holds every field as text and num holds fields that parse as numbers.
// A field missing from the relevant map makes the condition false.
func newConditionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("str", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("num", cel.MapType(cel.StringType, cel.DoubleType)),
	)
}

// conditionExpr renders c as a CEL expression.
func conditionExpr(c Condition) string {
	field := strconv.Quote(c.Field)

	switch c.Operator {
	case "eq", "in":
		return fmt.Sprintf("%s in str && str[%s] in %s", field, field, celStringList(c.Value))
	case "not_eq":
		return fmt.Sprintf("%s in str && !(str[%s] in %s)", field, field, celStringList(c.Value))
	case "lt", "lte", "gt", "gte":
		if len(c.Value) == 0 {
			return "false"
		}
		bound, err := strconv.ParseFloat(strings.TrimSpace(c.Value[0]), 64)
		if err != nil || math.IsNaN(bound) || math.IsInf(bound, 0) {
			return "false"
		}
		op := map[string]string{"lt": "<", "lte": "<=", "gt": ">", "gte": ">="}[c.Operator]
		return fmt.Sprintf("%s in num && num[%s] %s %s", field, field, op, celDouble(bound))
	default:
		return "false"
	}
}

func celStringList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func celDouble(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// compiledRule pairs a rule with its CEL program.
type compiledRule struct {
	rule    RoutingRule
	program cel.Program
}

func compileRules(env *cel.Env, rules []RoutingRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		ast, iss := env.Compile(conditionExpr(r.Condition))
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", r.Name, err)
		}
		out = append(out, compiledRule{rule: r, program: prg})
	}
	return out, nil
}

func (c compiledRule) matches(strs map[string]string, nums map[string]float64) (bool, error) {
	val, _, err := c.program.Eval(map[string]any{"str": strs, "num": nums})
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", c.rule.Name, err)
	}
	matched, ok := val.Value().(bool)
	return ok && matched, nil
}
