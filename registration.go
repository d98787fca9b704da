package svcinject

import (
	"fmt"
	"reflect"
)

type registrationState int

const (
	statePending registrationState = iota
	stateConstructing
	stateMaterialized
)

// Registration describes a desired binding. It is built with chained calls after
// Register and consumed exactly once when the batch is materialized.
type Registration struct {
	registry *Registry

	contract reflect.Type
	concrete reflect.Type
	lifetime Lifetime
	scope    Scope
	scoped   bool
	label    Label

	instance  any
	factory   func() (any, error)
	arguments []any
	lazyArgs  func() []any
	callbacks []func(any)

	// err records the first builder validation failure; it is reported on materialization.
	err   error
	state registrationState
}

func newRegistration(r *Registry, contract, concrete reflect.Type) *Registration {
	reg := &Registration{registry: r, lifetime: Singleton}
	if contract == nil {
		reg.err = ErrContractTypeIsNil
		return reg
	}
	if concrete == nil {
		concrete = contract
	}
	reg.contract = normalizeType(contract)
	reg.concrete = normalizeType(concrete)
	if !reg.concrete.AssignableTo(reg.contract) {
		reg.err = fmt.Errorf("%w: %v -> %v", ErrContractMismatch, reg.concrete, reg.contract)
	}
	return reg
}

// Singleton makes every resolution return the same instance.
func (reg *Registration) Singleton() *Registration {
	reg.lifetime = Singleton
	return reg
}

// Transient makes every resolution construct and inject a new instance.
func (reg *Registration) Transient() *Registration {
	reg.lifetime = Transient
	return reg
}

// FromInstance binds a pre-built instance. Struct values are normalized to pointers.
func (reg *Registration) FromInstance(instance any) *Registration {
	if isNil(instance) {
		reg.fail(ErrInstanceIsNil)
		return reg
	}
	instance = normalizeInstance(instance)
	if reg.contract != nil && !reflect.TypeOf(instance).AssignableTo(reg.contract) {
		reg.fail(fmt.Errorf("%w: instance %T -> %v", ErrContractMismatch, instance, reg.contract))
		return reg
	}
	reg.instance = instance
	return reg
}

// FromFactory binds a factory invoked in place of construction.
func (reg *Registration) FromFactory(factory func() (any, error)) *Registration {
	if factory == nil {
		reg.fail(ErrFactoryIsNil)
		return reg
	}
	reg.factory = factory
	return reg
}

// ScopedTo binds the resolver into the table of scope instead of the global one.
func (reg *Registration) ScopedTo(scope Scope) *Registration {
	reg.scope = scope
	reg.scoped = true
	return reg
}

// ScopedToActive binds the resolver into the table of the currently active scope.
// Without an active scope the binding stays global.
func (reg *Registration) ScopedToActive() *Registration {
	if scope, ok := reg.registry.scopes.ActiveScope(); ok {
		return reg.ScopedTo(scope)
	}
	return reg.Global()
}

// Global binds the resolver into the global table.
func (reg *Registration) Global() *Registration {
	reg.scope = emptyString
	reg.scoped = false
	return reg
}

// WithCallback adds a callback run each time an instance is created and fully injected.
// Callbacks run in the order they were added.
func (reg *Registration) WithCallback(fn func(instance any)) *Registration {
	if fn != nil {
		reg.callbacks = append(reg.callbacks, fn)
	}
	return reg
}

// WithArguments sets values preferred over the registry during injection.
func (reg *Registration) WithArguments(args ...any) *Registration {
	reg.arguments = args
	return reg
}

// WithLazyArguments sets a provider whose values are appended after WithArguments on every construction.
func (reg *Registration) WithLazyArguments(fn func() []any) *Registration {
	reg.lazyArgs = fn
	return reg
}

// WithLabel keys the binding by label in addition to its contract type.
func (reg *Registration) WithLabel(label Label) *Registration {
	reg.label = label
	return reg
}

// ContractType returns the type callers resolve.
func (reg *Registration) ContractType() reflect.Type { return reg.contract }

// ConcreteType returns the type that gets constructed.
func (reg *Registration) ConcreteType() reflect.Type { return reg.concrete }

// Lifetime returns the configured lifetime.
func (reg *Registration) Lifetime() Lifetime { return reg.lifetime }

// Label returns the configured label.
func (reg *Registration) Label() Label { return reg.label }

// Scope returns the bound scope and whether the registration is scope-bound.
func (reg *Registration) Scope() (Scope, bool) { return reg.scope, reg.scoped }

// Err returns the first validation error recorded by the builder.
func (reg *Registration) Err() error { return reg.err }

func (reg *Registration) fail(err error) {
	if reg.err == nil {
		reg.err = err
	}
}

func (reg *Registration) matches(contract reflect.Type, label Label) bool {
	return reg.contract == contract && reg.label == label
}

func (reg *Registration) runCallbacks(instance any) {
	for _, fn := range reg.callbacks {
		fn(instance)
	}
}

// normalizeType maps struct kinds to pointer-to-struct so all struct bindings share pointer semantics.
func normalizeType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Struct {
		return reflect.PointerTo(t)
	}
	return t
}

func normalizeInstance(instance any) any {
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Struct {
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		return ptr.Interface()
	}
	return instance
}
