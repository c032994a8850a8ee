// Package filter compiles boolean expressions over title records, used to
// narrow the record set fed into artifact generation.
package filter

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/radatool/radatool/ra"
)

// Filter is a compiled record predicate
type Filter struct {
	expression string
	program    *vm.Program
}

// CompilationError describes a filter expression that failed to compile
type CompilationError struct {
	Expression string
	Reason     string
	Err        error
}

// Error implements the error interface
func (e *CompilationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filter %q: %s: %v", e.Expression, e.Reason, e.Err)
	}
	return fmt.Sprintf("filter %q: %s", e.Expression, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As
func (e *CompilationError) Unwrap() error {
	return e.Err
}

// Compile validates and compiles an expression into an executable filter.
//
// Available variables: ID, Title, HashCount, Labels, HasExtended,
// AchievementCount, Points, HasPatch.
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{Expression: expression, Reason: "empty expression"}
	}

	program, err := expr.Compile(expression,
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	return &Filter{expression: expression, program: program}, nil
}

// Expression returns the source expression
func (f *Filter) Expression() string {
	return f.expression
}

// Match evaluates the filter against one record
func (f *Filter) Match(record ra.TitleRecord) (bool, error) {
	result, err := expr.Run(f.program, environment(record))
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", f.expression, err)
	}

	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q: expression did not evaluate to a boolean", f.expression)
	}
	return matched, nil
}

// Apply returns the records matching the filter, preserving order
func (f *Filter) Apply(records []ra.TitleRecord) ([]ra.TitleRecord, error) {
	matched := make([]ra.TitleRecord, 0, len(records))
	for _, record := range records {
		ok, err := f.Match(record)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// environment flattens a record into the variables the expression sees
func environment(record ra.TitleRecord) map[string]any {
	labels := make([]string, 0, len(record.Hashes))
	for _, h := range record.Hashes {
		labels = append(labels, h.Labels...)
	}

	env := map[string]any{
		"ID":               record.ID,
		"Title":            record.Title,
		"HashCount":        len(record.Hashes),
		"Labels":           labels,
		"HasExtended":      record.Extended != nil,
		"AchievementCount": 0,
		"Points":           0,
		"HasPatch":         false,
	}

	if record.Extended != nil {
		env["AchievementCount"] = record.Extended.AchievementCount
		env["Points"] = record.Extended.Points
		env["HasPatch"] = record.Extended.PatchURL != ""
	}

	return env
}
