// Package filter compiles user-supplied expressions into predicates
// over torrents, used to narrow which torrents a bulk pause touches.
package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/qbitrace/qbittorrent"
)

// Filter is a compiled torrent filter expression.
type Filter struct {
	expression string
	program    *vm.Program
}

// Compile parses and compiles a filter expression, e.g.
// `Category == "archive" and Ratio > 1.0 and hasTag("seed-forever") == false`.
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}

	program, err := expr.Compile(expression,
		expr.Env(baseEnv()),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expression, err)
	}

	return &Filter{
		expression: expression,
		program:    program,
	}, nil
}

// Expression returns the original filter expression.
func (f *Filter) Expression() string {
	return f.expression
}

// Match evaluates the filter against a torrent.
func (f *Filter) Match(t qbittorrent.TorrentInfo) (bool, error) {
	env := baseEnv()
	env["Name"] = t.Name
	env["Category"] = t.Category
	env["Tags"] = t.Tags
	env["State"] = t.State
	env["Size"] = t.Size
	env["Progress"] = t.Progress
	env["Ratio"] = t.Ratio
	env["AddedOn"] = t.AddedOn
	env["LastActivity"] = t.LastActivity
	env["TimeActive"] = t.TimeActive
	env["hasTag"] = func(tag string) bool {
		return slices.Contains(t.Tags, tag)
	}

	result, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression %q: %w", f.expression, err)
	}

	match, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean", f.expression)
	}
	return match, nil
}

func baseEnv() map[string]any {
	return map[string]any{
		"hasTag": func(tag string) bool { return false },
	}
}
