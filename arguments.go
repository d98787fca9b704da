package svcinject

import "reflect"

// ArgumentOverrides is an ordered pool of caller-supplied values consulted before the
// registry during one construction/injection pass.
//
// Matching never consumes a value: the same entry may satisfy any number of
// parameters, fields or properties.
type ArgumentOverrides struct {
	values []any
}

// NewArgumentOverrides builds a pool from args. Nil entries are dropped.
func NewArgumentOverrides(args ...any) *ArgumentOverrides {
	values := make([]any, 0, len(args))
	for _, arg := range args {
		if arg != nil {
			values = append(values, arg)
		}
	}
	return &ArgumentOverrides{values: values}
}

// Lookup returns the first value assignable to target.
func (a *ArgumentOverrides) Lookup(target reflect.Type) (any, bool) {
	if a == nil || target == nil {
		return nil, false
	}
	for _, v := range a.values {
		if reflect.TypeOf(v).AssignableTo(target) {
			return v, true
		}
	}
	return nil, false
}

// Len returns the number of values in the pool.
func (a *ArgumentOverrides) Len() int {
	if a == nil {
		return 0
	}
	return len(a.values)
}

// mergeArguments appends the lazy arguments after the eager ones.
func mergeArguments(eager []any, lazy func() []any) []any {
	merged := make([]any, 0, len(eager))
	merged = append(merged, eager...)
	if lazy != nil {
		merged = append(merged, lazy()...)
	}
	return merged
}
