package svcinject

import (
	"fmt"
	"reflect"
)

// CreateInstance constructs t and injects its members without registering it.
// args take precedence over the registry for every parameter, field and property.
func (r *Registry) CreateInstance(t reflect.Type, args ...any) (any, error) {
	if t == nil {
		return nil, ErrContractTypeIsNil
	}
	t = normalizeType(t)
	overrides := NewArgumentOverrides(args...)
	instance, err := r.construct(t, overrides, placement{global: true})
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, nil
	}
	if err := r.inject(instance, overrides); err != nil {
		return nil, err
	}
	if err := initialize(instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// ResolveDependencies injects the fields, properties and methods of an externally
// constructed instance from the registry.
func (r *Registry) ResolveDependencies(instance any) error {
	if instance == nil {
		return nil
	}
	return r.inject(instance, NewArgumentOverrides())
}

func (r *Registry) enter() error {
	if r.depth >= maxResolveDepth {
		return fmt.Errorf("%w: %d nested passes", ErrResolveDepthExceeded, r.depth)
	}
	r.depth++
	return nil
}

func (r *Registry) leave() {
	r.depth--
}

// construct allocates t, delegating managed types to the host allocator.
func (r *Registry) construct(t reflect.Type, args *ArgumentOverrides, at placement) (any, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	if r.allocator.IsManaged(t) {
		carrier, err := r.carrier(at)
		if err != nil {
			return nil, err
		}
		instance, err := r.allocator.CreateComponent(t, carrier)
		if err != nil || isNil(instance) {
			return nil, err
		}
		return instance, nil
	}

	d, err := r.describe(t)
	if err != nil {
		return nil, err
	}
	ctor, err := d.selectConstructor()
	if err != nil {
		return nil, err
	}
	if ctor == nil {
		return allocate(t)
	}

	for _, b := range r.building {
		if b == t {
			return nil, fmt.Errorf("%w: %s", ErrConstructorCycle, r.buildPath(t))
		}
	}
	r.building = append(r.building, t)
	defer func() { r.building = r.building[:len(r.building)-1] }()

	in := make([]reflect.Value, len(ctor.in))
	for i, pt := range ctor.in {
		v, err := r.resolveValue(pt, labelAt(ctor.labels, i), args)
		if err != nil {
			return nil, fmt.Errorf("constructor parameter %d of %v: %w", i, t, err)
		}
		in[i] = v
	}

	out := ctor.fn.Call(in)
	if ctor.returnsErr && !out[1].IsNil() {
		return nil, fmt.Errorf("constructor of %v: %w", t, out[1].Interface().(error))
	}
	if instance := out[0].Interface(); !isNil(instance) {
		return instance, nil
	}
	return nil, nil
}

// allocate creates a zero instance; all created struct instances are pointers.
func allocate(t reflect.Type) (any, error) {
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
		return reflect.New(t.Elem()).Interface(), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrTypeNotSupported, t)
}

// inject populates unset fields, then unset properties, then invokes every injectable method.
func (r *Registry) inject(instance any, args *ArgumentOverrides) error {
	if err := r.enter(); err != nil {
		return err
	}
	defer r.leave()

	rv := reflect.ValueOf(instance)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	d, err := r.describe(rv.Type())
	if err != nil {
		return err
	}

	if rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct {
		sv := rv.Elem()
		for _, f := range d.fields {
			fv := sv.FieldByIndex(f.index)
			if !fv.CanSet() || !fv.IsZero() {
				continue
			}
			v, err := r.resolveValue(f.typ, f.label, args)
			if err != nil {
				return fmt.Errorf("field %s of %v: %w", f.name, d.typ, err)
			}
			fv.Set(v)
		}
	}

	for _, p := range d.properties {
		current := rv.MethodByName(p.getter).Call(nil)[0]
		if !current.IsZero() {
			continue
		}
		v, err := r.resolveValue(p.typ, p.label, args)
		if err != nil {
			return fmt.Errorf("property %s of %v: %w", p.name, d.typ, err)
		}
		if v.IsZero() {
			continue
		}
		rv.MethodByName(p.setter).Call([]reflect.Value{v})
	}

	for _, m := range d.methods {
		in := make([]reflect.Value, len(m.in))
		for i, pt := range m.in {
			v, err := r.resolveValue(pt, labelAt(m.labels, i), args)
			if err != nil {
				return fmt.Errorf("method %s of %v: %w", m.name, d.typ, err)
			}
			in[i] = v
		}
		out := rv.MethodByName(m.name).Call(in)
		if n := len(out); n > 0 && out[n-1].Type() == errorType && !out[n-1].IsNil() {
			return fmt.Errorf("method %s of %v: %w", m.name, d.typ, out[n-1].Interface().(error))
		}
	}
	return nil
}

// resolveValue resolves one parameter, field or property: overrides first, then the registry,
// then the literal provider. Absence yields the zero value of target.
func (r *Registry) resolveValue(target reflect.Type, label Label, args *ArgumentOverrides) (reflect.Value, error) {
	if v, ok := args.Lookup(target); ok {
		return reflect.ValueOf(v), nil
	}

	instance, err := r.ResolveSafe(target, Labeled(label))
	if err != nil {
		return reflect.Value{}, err
	}
	if instance == nil {
		lv, found, err := r.resolveLiteral(label, target)
		if err != nil || !found {
			return reflect.Zero(target), err
		}
		instance = lv
	}

	v, ok := adapt(reflect.ValueOf(instance), target)
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: resolved %T for %v", ErrContractMismatch, instance, target)
	}
	return v, nil
}

// adapt normalizes pointer/value combinations: a *T instance satisfies a T target.
func adapt(v reflect.Value, target reflect.Type) (reflect.Value, bool) {
	switch {
	case v.Type().AssignableTo(target):
		return v, true
	case v.Kind() == reflect.Pointer && !v.IsNil() && v.Type().Elem().AssignableTo(target):
		return v.Elem(), true
	default:
		return reflect.Value{}, false
	}
}
