package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// The sandboxed evaluator exposes exactly these names beside the weight
// vector and column values. Anything else fails the expression, which
// surfaces as a per-row NaN sentinel rather than an abort.

var ifCallPattern = regexp.MustCompile(`\bif\(`)

// rewriteFormula normalizes user formula syntax before compilation:
// caret exponentiation becomes **, and the if(cond, a, b) construct is
// rewritten to the whitelisted iif function.
func rewriteFormula(formula string) string {
	formula = strings.ReplaceAll(formula, "^", "**")
	return ifCallPattern.ReplaceAllString(formula, "iif(")
}

// compileFormula compiles a rewritten formula. Compilation failures are
// configuration errors and therefore fatal at build time.
func compileFormula(formula string) (*vm.Program, error) {
	program, err := expr.Compile(rewriteFormula(formula))
	if err != nil {
		return nil, fmt.Errorf("scoring: failed to compile formula %q: %w", formula, err)
	}
	return program, nil
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func flattenArgs(args []any) ([]float64, error) {
	out := make([]float64, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case []float64:
			out = append(out, v...)
		case []any:
			nested, err := flattenArgs(v)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		default:
			f, ok := asFloat(arg)
			if !ok {
				return nil, fmt.Errorf("scoring: non-numeric argument %T", arg)
			}
			out = append(out, f)
		}
	}
	return out, nil
}

// whitelistFuncs returns the fixed function set visible to user
// formulas. The env map is rebuilt per row; the functions are shared.
func whitelistFuncs() map[string]any {
	return map[string]any{
		"sum": func(args ...any) (any, error) {
			values, err := flattenArgs(args)
			if err != nil {
				return nil, err
			}
			total := 0.0
			for _, v := range values {
				total += v
			}
			return total, nil
		},
		"min": func(args ...any) (any, error) {
			values, err := flattenArgs(args)
			if err != nil {
				return nil, err
			}
			if len(values) == 0 {
				return nil, fmt.Errorf("scoring: min of nothing")
			}
			out := values[0]
			for _, v := range values[1:] {
				out = math.Min(out, v)
			}
			return out, nil
		},
		"max": func(args ...any) (any, error) {
			values, err := flattenArgs(args)
			if err != nil {
				return nil, err
			}
			if len(values) == 0 {
				return nil, fmt.Errorf("scoring: max of nothing")
			}
			out := values[0]
			for _, v := range values[1:] {
				out = math.Max(out, v)
			}
			return out, nil
		},
		"abs": func(args ...any) (any, error) {
			values, err := flattenArgs(args)
			if err != nil || len(values) != 1 {
				return nil, fmt.Errorf("scoring: abs takes one argument")
			}
			return math.Abs(values[0]), nil
		},
		"log": func(args ...any) (any, error) {
			values, err := flattenArgs(args)
			if err != nil || len(values) != 1 {
				return nil, fmt.Errorf("scoring: log takes one argument")
			}
			return math.Log(values[0]), nil
		},
		"iif": func(args ...any) (any, error) {
			if len(args) != 3 {
				return nil, fmt.Errorf("scoring: iif takes three arguments")
			}
			cond, ok := args[0].(bool)
			if !ok {
				f, fok := asFloat(args[0])
				if !fok {
					return nil, fmt.Errorf("scoring: iif condition is not boolean")
				}
				cond = f != 0
			}
			if cond {
				return args[1], nil
			}
			return args[2], nil
		},
	}
}

// CompileFormula compiles a user formula after syntax normalization.
// The objective's combining formula goes through the same path as the
// scoring formulas.
func CompileFormula(formula string) (*vm.Program, error) {
	return compileFormula(formula)
}

// RunFormula executes a compiled formula against an env and coerces the
// result to float64.
func RunFormula(program *vm.Program, env map[string]any) (float64, error) {
	return runFormula(program, env)
}

// EnvFuncs returns the whitelisted function set for formula envs.
func EnvFuncs() map[string]any {
	return whitelistFuncs()
}

// runFormula executes a compiled formula against an env and coerces the
// result to float64.
func runFormula(program *vm.Program, env map[string]any) (float64, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, err
	}
	v, ok := asFloat(out)
	if !ok {
		return 0, fmt.Errorf("scoring: formula produced non-numeric %T", out)
	}
	return v, nil
}
