package svcinject

import "reflect"

// Carrier is the host object a managed component gets attached to.
type Carrier any

// ComponentAllocator is the host object model's allocation strategy for types that
// cannot be freely constructed.
type ComponentAllocator interface {
	// IsManaged reports whether instances of t must be created on a carrier.
	IsManaged(t reflect.Type) bool
	// NewCarrier creates the carrier for a scope, or the process-wide one when global is true.
	// A nil carrier means none is available.
	NewCarrier(scope Scope, global bool) Carrier
	// CreateComponent attaches a new instance of t to carrier.
	CreateComponent(t reflect.Type, carrier Carrier) (any, error)
	// DestroyCarrier releases a carrier and everything attached to it.
	DestroyCarrier(carrier Carrier)
}

// ScopeSource exposes the ambient scope.
type ScopeSource interface {
	ActiveScope() (Scope, bool)
}

type nopAllocator struct{}

func (nopAllocator) IsManaged(reflect.Type) bool    { return false }
func (nopAllocator) NewCarrier(Scope, bool) Carrier { return nil }
func (nopAllocator) CreateComponent(reflect.Type, Carrier) (any, error) {
	return nil, ErrMissingCarrier
}
func (nopAllocator) DestroyCarrier(Carrier) {}

type noScope struct{}

func (noScope) ActiveScope() (Scope, bool) { return emptyString, false }

// StaticScope is a ScopeSource whose active scope is set explicitly.
type StaticScope struct {
	scope  Scope
	active bool
}

// Activate makes scope the active one.
func (s *StaticScope) Activate(scope Scope) {
	s.scope = scope
	s.active = true
}

// Deactivate clears the active scope.
func (s *StaticScope) Deactivate() {
	s.scope = emptyString
	s.active = false
}

func (s *StaticScope) ActiveScope() (Scope, bool) {
	return s.scope, s.active
}
