package filter

import (
	"fmt"
	"log"

	"github.com/expr-lang/expr"
)

// AddExprTextFilter is AddTextFilter with the value transform given as an
// expr-lang expression over `value` (the submitted string) and `column`.
// For example `value + "%"` or `int(value)`. Evaluation errors add no
// constraint.
func (l *List) AddExprTextFilter(name, expression string, opts ...Option) error {
	prog, err := expr.Compile(expression, expr.Env(map[string]any{"value": "", "column": ""}))
	if err != nil {
		return fmt.Errorf("compile filter %s: %w", name, err)
	}
	opts = append(opts, WithTextValue(func(value any, column string) any {
		out, err := expr.Run(prog, map[string]any{"value": value, "column": column})
		if err != nil {
			log.Printf("WARN: filter %s: %v", name, err)
			return nil
		}
		return out
	}))
	l.AddTextFilter(name, opts...)
	return nil
}
