package svcinject

import (
	"fmt"
	"reflect"
)

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Bind registers TConcrete as the implementation of TContract.
func Bind[TContract, TConcrete any](r *Registry) *Registration {
	return r.Register(TypeOf[TContract](), TypeOf[TConcrete]())
}

// BindSelf registers T as its own implementation.
func BindSelf[T any](r *Registry) *Registration {
	return r.Register(TypeOf[T](), nil)
}

// BindInstance registers instance under the contract type T.
func BindInstance[T any](r *Registry, instance T) *Registration {
	return r.RegisterInstance(TypeOf[T](), instance)
}

// BindFactory registers factory under the contract type T.
func BindFactory[T any](r *Registry, factory func() (T, error)) *Registration {
	if factory == nil {
		return r.RegisterFactory(TypeOf[T](), nil)
	}
	return r.RegisterFactory(TypeOf[T](), func() (any, error) {
		v, err := factory()
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// DescribeType declares the injectable members of T. See Registry.Describe.
func DescribeType[T any](r *Registry, opts ...DescribeOption) error {
	return r.Describe(TypeOf[T](), opts...)
}

// ResolveAs resolves T and casts the instance. Absence yields T's zero value and no error.
func ResolveAs[T any](r *Registry, opts ...ResolveOption) (T, error) {
	v, err := r.ResolveSafe(TypeOf[T](), opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v)
}

// MustResolve resolves T or panics on a structural error.
func MustResolve[T any](r *Registry, opts ...ResolveOption) T {
	v, err := ResolveAs[T](r, opts...)
	if err != nil {
		panic(err)
	}
	return v
}

// ResolveInScopeAs resolves T from the table of scope only.
func ResolveInScopeAs[T any](r *Registry, scope Scope, opts ...ResolveOption) (T, error) {
	v, err := r.ResolveInScope(TypeOf[T](), scope, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v)
}

// CreateInstanceAs constructs and injects a T without registering it.
func CreateInstanceAs[T any](r *Registry, args ...any) (T, error) {
	v, err := r.CreateInstance(TypeOf[T](), args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v)
}

func cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if x, ok := v.(T); ok {
		return x, nil
	}
	if rv, ok := adapt(reflect.ValueOf(v), TypeOf[T]()); ok {
		return rv.Interface().(T), nil
	}
	return zero, fmt.Errorf("%w: %T is not of requested type %v", ErrContractMismatch, v, TypeOf[T]())
}
