package hcl

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// newEvalContext exposes the environment as the `env` map variable together
// with a handful of functions that make it usable from a settings file, e.g.
// `dir = lookup(env, "SANDBOX", "./sandbox")`.
func newEvalContext(env map[string]string) *hcl.EvalContext {
	vals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vals[k] = cty.StringVal(v)
	}
	envVal := cty.MapValEmpty(cty.String)
	if len(vals) > 0 {
		envVal = cty.MapVal(vals)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envVal,
		},
		Functions: map[string]function.Function{
			"lookup":   stdlib.LookupFunc,
			"coalesce": stdlib.CoalesceFunc,
			"upper":    stdlib.UpperFunc,
			"lower":    stdlib.LowerFunc,
		},
	}
}
