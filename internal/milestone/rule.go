package milestone

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

// Rule describes one milestone and the condition that unlocks it.
// The When field holds a CEL expression over Facts.
// The CEL program is compiled by Init and evaluated once per ledger day.
type Rule struct {
	// ID — stable milestone identifier.
	ID string `yaml:"id"`
	// Title — display title.
	Title string `yaml:"title"`
	// Description — display description.
	Description string `yaml:"description"`
	// When — CEL expression; the milestone unlocks on the first day it is true.
	// Must return a boolean value.
	When string `yaml:"when"`
	// program — compiled CEL program used to execute the condition.
	program cel.Program
}

// Init compiles the expression in When into an executable CEL program using env.
// Syntax errors, unknown variables and non-boolean expressions are reported.
func (r *Rule) Init(env *cel.Env) error {
	if r.ID == "" {
		return errors.New("milestone rule: id must be specified")
	}

	ast, iss := env.Parse(r.When)
	if iss.Err() != nil {
		return fmt.Errorf("milestone %s: %w", r.ID, iss.Err())
	}

	checked, iss := env.Check(ast)
	if iss.Err() != nil {
		return fmt.Errorf("milestone %s: %w", r.ID, iss.Err())
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("milestone %s: condition must be boolean, got %s", r.ID, checked.OutputType())
	}

	var err error
	r.program, err = env.Program(checked)
	if err != nil {
		return fmt.Errorf("milestone %s: %w", r.ID, err)
	}

	return nil
}

// Eval executes the compiled condition against f.
func (r *Rule) Eval(f Facts) (bool, error) {
	if r.program == nil {
		return false, fmt.Errorf("milestone %s: rule is not initialized", r.ID)
	}
	result, _, err := r.program.Eval(f.Activation())
	if err != nil {
		return false, err
	}
	unlocked, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("milestone %s: condition returned %T", r.ID, result.Value())
	}
	return unlocked, nil
}
