package experiments

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Args carries the named arguments handed to an experiment function.
type Args map[string]any

// Value returns the argument stored under name.
func (a Args) Value(name string) (any, bool) {
	v, ok := a[name]

	return v, ok
}

// Param declares one named parameter of an experiment function. Go offers no
// runtime view of a function's parameter names or defaults, so experiments
// that want validated, fully resolved Args declare their signature up front
// via WithParams.
type Param struct {
	// Name of the parameter as recorded in Args.
	Name string
	// Default value used when no variant or caller overrides the parameter.
	// A nil default marks the parameter as required.
	Default any
}

// resolveArgs computes the effective named arguments for a run. Layers apply
// in order (variant overrides root to leaf, then call-time args), later
// layers winning. With declared params, unknown and missing required
// arguments are errors; without them the layers merge unvalidated and the
// result is recorded as-is, best effort.
func resolveArgs(params []Param, layers ...Args) (Args, error) {
	final := Args{}

	if len(params) == 0 {
		for _, layer := range layers {
			for k, v := range layer {
				final[k] = v
			}
		}

		return final, nil
	}

	declared := make(map[string]bool, len(params))
	for _, p := range params {
		declared[p.Name] = true
		if p.Default != nil {
			final[p.Name] = p.Default
		}
	}

	for _, layer := range layers {
		for k, v := range layer {
			if !declared[k] {
				return nil, fmt.Errorf("unknown argument %q: not a declared parameter", k)
			}
			final[k] = v
		}
	}

	for _, p := range params {
		if _, ok := final[p.Name]; !ok {
			return nil, fmt.Errorf("missing required argument %q", p.Name)
		}
	}

	return final, nil
}

// validateOverrides checks variant overrides against the declared params, so
// a typo fails at AddVariant time instead of at run time.
func validateOverrides(params []Param, overrides Args) error {
	if len(params) == 0 {
		return nil
	}

	declared := make(map[string]bool, len(params))
	for _, p := range params {
		declared[p.Name] = true
	}
	for k := range overrides {
		if !declared[k] {
			return fmt.Errorf("unknown argument %q: not a declared parameter", k)
		}
	}

	return nil
}

// funcSymbol resolves the package path and function name of fn through the
// runtime, for the Function and Module info fields.
func funcSymbol(fn Func) (module, function string) {
	if fn == nil {
		return "unknown", "unknown"
	}

	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "unknown", "unknown"
	}

	full := f.Name()

	// The symbol reads like "github.com/user/repo/pkg.Fn" or
	// "github.com/user/repo/pkg.Fn.func1" for closures. Split at the first
	// dot after the last slash.
	slash := strings.LastIndex(full, "/")
	dot := strings.Index(full[slash+1:], ".")
	if dot < 0 {
		return full, full
	}
	dot += slash + 1

	return full[:dot], full[dot+1:]
}
