package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr/vm"
)

// stagedFormula is an ordered set of named sub-expressions. Stages are
// evaluated in declaration order; each stage sees the row's raw
// columns, the weights slice, and every prior stage's result under its
// delimiter-stripped base name. The last stage's value is the row score.
type stagedFormula struct {
	names     []string // full stage names, in order
	baseNames []string // delimiter-stripped reference names
	programs  []*vm.Program
}

func newStagedFormula(formulas map[string]string, order []string, delimiter string) (*stagedFormula, error) {
	if len(formulas) == 0 {
		return nil, fmt.Errorf("scoring: staged formula must not be empty")
	}
	if delimiter == "" {
		delimiter = "#"
	}
	if len(order) == 0 {
		if len(formulas) > 1 {
			return nil, fmt.Errorf("scoring: staged formula with %d stages needs an explicit order", len(formulas))
		}
		for name := range formulas {
			order = []string{name}
		}
	}

	s := &stagedFormula{
		names:     make([]string, 0, len(order)),
		baseNames: make([]string, 0, len(order)),
		programs:  make([]*vm.Program, 0, len(order)),
	}
	for _, name := range order {
		formula, ok := formulas[name]
		if !ok {
			return nil, fmt.Errorf("scoring: staged formula order references unknown stage %q", name)
		}
		program, err := compileFormula(formula)
		if err != nil {
			return nil, fmt.Errorf("scoring: stage %q: %w", name, err)
		}
		base, _, _ := strings.Cut(name, delimiter)
		s.names = append(s.names, name)
		s.baseNames = append(s.baseNames, base)
		s.programs = append(s.programs, program)
	}
	return s, nil
}

// computeStaged evaluates the staged formula row by row. A stage that
// fails on a row is skipped for that row; if the final stage cannot be
// evaluated the row's score is the NaN sentinel.
func (e *Engine) computeStaged(weights, scores []float64) {
	s := e.staged
	last := len(s.programs) - 1

	for row := range scores {
		env := make(map[string]any, len(e.selected)+len(e.funcs)+len(s.names)+1)
		for i, name := range e.selected {
			env[name] = e.values[i][row]
		}
		env["weights"] = weights
		for name, fn := range e.funcs {
			env[name] = fn
		}

		scores[row] = math.NaN()
		for i, program := range s.programs {
			v, err := runFormula(program, env)
			if err != nil {
				continue
			}
			env[s.baseNames[i]] = v
			env[s.names[i]] = v
			if i == last {
				scores[row] = v
			}
		}
	}
}
