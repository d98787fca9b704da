package svcinject

import "errors"

var (
	ErrContractTypeIsNil    = errors.New("contract type parameter is nil")
	ErrInstanceIsNil        = errors.New("instance parameter is nil")
	ErrFactoryIsNil         = errors.New("factory parameter is nil")
	ErrContractMismatch     = errors.New("concrete type is not assignable to contract type")
	ErrTypeNotSupported     = errors.New("type cannot be allocated without a constructor")
	ErrInvalidConstructor   = errors.New("constructor must be a func returning the concrete type and optionally an error")
	ErrAmbiguousConstructor = errors.New("type has more than one constructor and none is marked injectable")
	ErrUnknownMember        = errors.New("injectable member not found on type")
	ErrMissingCarrier       = errors.New("no carrier available for managed component")
	ErrConstructorCycle     = errors.New("constructor dependency cycle detected")
	ErrResolveDepthExceeded = errors.New("maximum resolve depth exceeded")
	ErrContextAlreadyRun    = errors.New("context has already been run")
)
