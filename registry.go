package svcinject

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// Registry owns the global resolver table, one resolver table per active scope and the
// pending registration batch.
//
// A Registry is not safe for concurrent use. Resolution is reentrant on the calling
// goroutine: resolving a contract may materialize further pending registrations.
type Registry struct {
	log       *zap.Logger
	allocator ComponentAllocator
	scopes    ScopeSource
	literals  LiteralProvider

	global *scopeTable
	scoped map[Scope]*scopeTable

	// pending holds the registrations of the current batch in append order.
	pending []*Registration

	declarations map[reflect.Type]*declaration
	descriptors  map[reflect.Type]*descriptor

	// building is the stack of concrete types whose constructor is running.
	building []reflect.Type
	depth    int
}

func New(opts ...Option) *Registry {
	r := &Registry{
		log:          zap.NewNop(),
		allocator:    nopAllocator{},
		scopes:       noScope{},
		global:       newScopeTable(),
		scoped:       make(map[Scope]*scopeTable),
		declarations: make(map[reflect.Type]*declaration),
		descriptors:  make(map[reflect.Type]*descriptor),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// resolveOptions narrows a lookup.
type resolveOptions struct {
	label         Label
	includeActive bool
}

// ResolveOption configures Resolve, ResolveSafe and HasResolver.
type ResolveOption func(o *resolveOptions)

// Labeled selects the binding registered under label.
func Labeled(label Label) ResolveOption {
	return func(o *resolveOptions) { o.label = label }
}

// SkipActiveScope restricts the lookup to the global table.
func SkipActiveScope() ResolveOption {
	return func(o *resolveOptions) { o.includeActive = false }
}

func buildResolveOptions(opts []ResolveOption) resolveOptions {
	o := resolveOptions{label: NoLabel, includeActive: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// BeginRegistrationBatch clears the pending list. It must be called before any bootstrap unit registers.
func (r *Registry) BeginRegistrationBatch() {
	r.pending = nil
	r.log.Debug("registration batch started")
}

// Register appends a binding of contract to concrete to the pending batch.
// A nil concrete binds the contract type to itself. Struct types are normalized to pointers.
func (r *Registry) Register(contract, concrete reflect.Type) *Registration {
	reg := newRegistration(r, contract, concrete)
	r.pending = append(r.pending, reg)
	return reg
}

// RegisterInstance appends a binding of contract to a pre-built instance.
func (r *Registry) RegisterInstance(contract reflect.Type, instance any) *Registration {
	concrete := contract
	if instance != nil {
		concrete = reflect.TypeOf(normalizeInstance(instance))
	}
	return r.Register(contract, concrete).FromInstance(instance)
}

// RegisterFactory appends a binding of contract to a factory.
func (r *Registry) RegisterFactory(contract reflect.Type, factory func() (any, error)) *Registration {
	return r.Register(contract, nil).FromFactory(factory)
}

// EndRegistrationBatch materializes every pending registration in append order and clears the batch.
// All materialization errors are reported, joined.
func (r *Registry) EndRegistrationBatch() error {
	var errs []error
	// Registrations appended while materializing are part of this batch.
	for i := 0; i < len(r.pending); i++ {
		if err := r.createResolver(r.pending[i]); err != nil {
			errs = append(errs, err)
		}
	}
	count := len(r.pending)
	r.pending = nil
	r.log.Debug("registration batch materialized", zap.Int("registrations", count), zap.Int("errors", len(errs)))
	return errors.Join(errs...)
}

// Pending returns the number of registrations waiting for materialization.
func (r *Registry) Pending() int {
	return len(r.pending)
}

// Resolve returns the instance bound to contract or panics on a structural error.
// Prefer ResolveSafe in production code to handle errors gracefully.
func (r *Registry) Resolve(contract reflect.Type, opts ...ResolveOption) any {
	v, err := r.ResolveSafe(contract, opts...)
	if err != nil {
		panic(err)
	}
	return v
}

// ResolveSafe returns the instance bound to contract, searching the global table first and then,
// unless SkipActiveScope is given, the active scope's table.
// An unregistered contract yields (nil, nil).
func (r *Registry) ResolveSafe(contract reflect.Type, opts ...ResolveOption) (any, error) {
	if contract == nil {
		return nil, ErrContractTypeIsNil
	}
	o := buildResolveOptions(opts)
	contract = normalizeType(contract)

	if err := r.materializePending(contract, o.label); err != nil {
		return nil, err
	}
	res, ok := r.lookup(contract, o.label, o.includeActive)
	if !ok {
		return nil, nil
	}
	return res.produce()
}

// ResolveInScope returns the instance bound to contract in the table of scope only.
func (r *Registry) ResolveInScope(contract reflect.Type, scope Scope, opts ...ResolveOption) (any, error) {
	if contract == nil {
		return nil, ErrContractTypeIsNil
	}
	o := buildResolveOptions(opts)
	contract = normalizeType(contract)

	if err := r.materializePending(contract, o.label); err != nil {
		return nil, err
	}
	table, ok := r.scoped[scope]
	if !ok {
		return nil, nil
	}
	res, ok := table.resolvers.lookup(contract, o.label)
	if !ok {
		return nil, nil
	}
	return res.produce()
}

// ResolveFromActiveScope returns the instance bound to contract in the active scope's table only.
func (r *Registry) ResolveFromActiveScope(contract reflect.Type, opts ...ResolveOption) (any, error) {
	scope, ok := r.scopes.ActiveScope()
	if !ok {
		return nil, nil
	}
	return r.ResolveInScope(contract, scope, opts...)
}

// HasResolver reports whether contract resolves, using the same search order as ResolveSafe.
// A matching pending registration is materialized first; its failure is logged and reported as false.
func (r *Registry) HasResolver(contract reflect.Type, opts ...ResolveOption) bool {
	if contract == nil {
		return false
	}
	o := buildResolveOptions(opts)
	contract = normalizeType(contract)

	if err := r.materializePending(contract, o.label); err != nil {
		r.log.Error("materialization failed during resolver check", zap.Stringer("contract", contract), zap.Error(err))
		return false
	}
	_, ok := r.lookup(contract, o.label, o.includeActive)
	return ok
}

// HasScopeResolver reports whether scope's table holds a resolver for contract and label.
// A matching pending registration is materialized first, as in HasResolver.
func (r *Registry) HasScopeResolver(scope Scope, contract reflect.Type, label Label) bool {
	if contract == nil {
		return false
	}
	contract = normalizeType(contract)

	if err := r.materializePending(contract, label); err != nil {
		r.log.Error("materialization failed during resolver check", zap.Stringer("contract", contract), zap.Error(err))
		return false
	}
	table, ok := r.scoped[scope]
	if !ok {
		return false
	}
	_, ok = table.resolvers.lookup(contract, label)
	return ok
}

// ResetScope discards the resolvers of scope and destroys its carrier.
func (r *Registry) ResetScope(scope Scope) {
	table, ok := r.scoped[scope]
	if !ok {
		return
	}
	if table.carrier != nil {
		r.allocator.DestroyCarrier(table.carrier)
	}
	delete(r.scoped, scope)
	r.log.Debug("scope reset", zap.String("scope", string(scope)))
}

// ResetActiveScope resets the active scope, if any.
func (r *Registry) ResetActiveScope() {
	if scope, ok := r.scopes.ActiveScope(); ok {
		r.ResetScope(scope)
	}
}

// ResetScopes resets every scope table.
func (r *Registry) ResetScopes() {
	for scope := range r.scoped {
		r.ResetScope(scope)
	}
}

// ResetGlobal discards the global resolvers and destroys the global carrier.
func (r *Registry) ResetGlobal() {
	if r.global.carrier != nil {
		r.allocator.DestroyCarrier(r.global.carrier)
	}
	r.global = newScopeTable()
	r.log.Debug("global scope reset")
}

// ResetAll resets every scope and the global table.
func (r *Registry) ResetAll() {
	r.ResetScopes()
	r.ResetGlobal()
}

// Describe declares constructors, properties and methods of t that take part in injection.
// Struct types are normalized to pointers.
func (r *Registry) Describe(t reflect.Type, opts ...DescribeOption) error {
	if t == nil {
		return ErrContractTypeIsNil
	}
	t = normalizeType(t)
	decl, ok := r.declarations[t]
	if !ok {
		decl = &declaration{}
	}
	for _, opt := range opts {
		if err := opt(decl); err != nil {
			return fmt.Errorf("describe %v: %w", t, err)
		}
	}
	r.declarations[t] = decl
	delete(r.descriptors, t)
	return nil
}

// describe returns the cached descriptor of t, building it on first use.
func (r *Registry) describe(t reflect.Type) (*descriptor, error) {
	if d, ok := r.descriptors[t]; ok {
		return d, nil
	}
	d, err := buildDescriptor(t, r.declarations[t])
	if err != nil {
		return nil, err
	}
	r.descriptors[t] = d
	return d, nil
}

// materializePending materializes the first pending registration matching contract and label.
func (r *Registry) materializePending(contract reflect.Type, label Label) error {
	for _, reg := range r.pending {
		if !reg.matches(contract, label) {
			continue
		}
		switch reg.state {
		case statePending:
			return r.createResolver(reg)
		case stateConstructing:
			return fmt.Errorf("%w: %s", ErrConstructorCycle, r.buildPath(reg.concrete))
		}
	}
	return nil
}

func (r *Registry) lookup(contract reflect.Type, label Label, includeActive bool) (*resolver, bool) {
	if res, ok := r.global.resolvers.lookup(contract, label); ok {
		return res, true
	}
	if !includeActive {
		return nil, false
	}
	scope, ok := r.scopes.ActiveScope()
	if !ok {
		return nil, false
	}
	table, ok := r.scoped[scope]
	if !ok {
		return nil, false
	}
	return table.resolvers.lookup(contract, label)
}

// table returns the target table of a placement, creating scope tables on demand.
func (r *Registry) table(at placement) *scopeTable {
	if at.global {
		return r.global
	}
	table, ok := r.scoped[at.scope]
	if !ok {
		table = newScopeTable()
		r.scoped[at.scope] = table
	}
	return table
}

// carrier returns the carrier of a placement, asking the allocator for one on first use.
func (r *Registry) carrier(at placement) (Carrier, error) {
	table := r.table(at)
	if table.carrier == nil {
		table.carrier = r.allocator.NewCarrier(at.scope, at.global)
	}
	if table.carrier == nil {
		if at.global {
			return nil, fmt.Errorf("%w: global scope", ErrMissingCarrier)
		}
		return nil, fmt.Errorf("%w: scope %q", ErrMissingCarrier, at.scope)
	}
	return table.carrier, nil
}

func (r *Registry) buildPath(last reflect.Type) string {
	chain := make([]string, 0, len(r.building)+1)
	for _, t := range r.building {
		chain = append(chain, t.String())
	}
	if last != nil {
		chain = append(chain, last.String())
	}
	return strings.Join(chain, pathSep)
}
