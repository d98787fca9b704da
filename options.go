package svcinject

import "go.uber.org/zap"

// Option configures a Registry.
type Option func(r *Registry)

// WithLogger sets the logger used for registry diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.log = logger
		}
	}
}

// WithAllocator sets the host allocator for managed component types.
func WithAllocator(allocator ComponentAllocator) Option {
	return func(r *Registry) {
		if allocator != nil {
			r.allocator = allocator
		}
	}
}

// WithScopeSource sets the source of the active scope.
func WithScopeSource(source ScopeSource) Option {
	return func(r *Registry) {
		if source != nil {
			r.scopes = source
		}
	}
}

// WithLiteralProvider installs the fallback for labeled literal members that have no resolver.
func WithLiteralProvider(provider LiteralProvider) Option {
	return func(r *Registry) {
		r.literals = provider
	}
}
