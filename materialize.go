package svcinject

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// placement says which table, and therefore which carrier, a binding belongs to.
type placement struct {
	scope  Scope
	global bool
}

func (reg *Registration) placement() placement {
	return placement{scope: reg.scope, global: !reg.scoped}
}

// createResolver materializes reg into its table. A registration is materialized at most once,
// and a singleton whose contract and label already resolve in the target table is skipped.
func (r *Registry) createResolver(reg *Registration) error {
	if reg.state != statePending {
		return nil
	}
	if reg.err != nil {
		reg.state = stateMaterialized
		return fmt.Errorf("registration of %v: %w", reg.contract, reg.err)
	}

	table := r.table(reg.placement())

	if reg.lifetime == Transient {
		reg.state = stateMaterialized
		table.resolvers.add(reg.contract, reg.label, &resolver{produce: func() (any, error) {
			return r.produce(reg)
		}})
		r.logMaterialized(reg)
		return nil
	}

	if _, exists := table.resolvers.lookup(reg.contract, reg.label); exists {
		reg.state = stateMaterialized
		r.log.Debug("singleton already resolvable, registration skipped",
			zap.Stringer("contract", reg.contract), zap.String("label", string(reg.label)))
		return nil
	}

	reg.state = stateConstructing
	defer func() {
		if reg.state == stateConstructing {
			reg.state = stateMaterialized
		}
	}()
	args := NewArgumentOverrides(mergeArguments(reg.arguments, reg.lazyArgs)...)
	instance, err := r.obtain(reg, args)
	reg.state = stateMaterialized
	if err != nil {
		return err
	}

	// Stored before member injection so cycles through fields, properties or methods
	// resolve to this instance.
	res := singletonResolver(instance)
	table.resolvers.add(reg.contract, reg.label, res)
	if err := r.complete(reg, instance, args); err != nil {
		table.resolvers.remove(reg.contract, reg.label, res)
		return err
	}
	r.logMaterialized(reg)
	return nil
}

// produce builds a fresh instance of a transient registration.
func (r *Registry) produce(reg *Registration) (any, error) {
	args := NewArgumentOverrides(mergeArguments(reg.arguments, reg.lazyArgs)...)
	instance, err := r.obtain(reg, args)
	if err != nil {
		return nil, err
	}
	if err := r.complete(reg, instance, args); err != nil {
		return nil, err
	}
	return instance, nil
}

// obtain returns the instance override, the factory result or a constructed instance, in that order.
func (r *Registry) obtain(reg *Registration, args *ArgumentOverrides) (any, error) {
	if reg.instance != nil {
		return reg.instance, nil
	}
	if reg.factory != nil {
		instance, err := reg.factory()
		if err != nil {
			return nil, fmt.Errorf("factory for %v: %w", reg.contract, err)
		}
		if isNil(instance) {
			return nil, nil
		}
		if !reflect.TypeOf(instance).AssignableTo(reg.contract) {
			return nil, fmt.Errorf("%w: factory returned %T for %v", ErrContractMismatch, instance, reg.contract)
		}
		return instance, nil
	}
	return r.construct(reg.concrete, args, reg.placement())
}

// complete injects members, runs Initialize and the registration callbacks.
func (r *Registry) complete(reg *Registration, instance any, args *ArgumentOverrides) error {
	if instance == nil {
		return nil
	}
	if err := r.inject(instance, args); err != nil {
		return err
	}
	if err := initialize(instance); err != nil {
		return err
	}
	reg.runCallbacks(instance)
	return nil
}

// isNil reports whether instance is nil or a nil value of a nillable kind boxed in an interface.
func isNil(instance any) bool {
	if instance == nil {
		return true
	}
	v := reflect.ValueOf(instance)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

func (r *Registry) logMaterialized(reg *Registration) {
	r.log.Debug("resolver materialized",
		zap.Stringer("contract", reg.contract),
		zap.Stringer("concrete", reg.concrete),
		zap.Stringer("lifetime", reg.lifetime),
		zap.String("label", string(reg.label)),
		zap.Bool("scoped", reg.scoped),
		zap.String("scope", string(reg.scope)),
	)
}
