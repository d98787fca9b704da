package svcinject

import "fmt"

// Initializer is an optional interface that an instance may implement to perform
// additional initialization after all of its members have been injected.
//
// Initialize runs on every construction pass of the registry, before the callbacks
// added with WithCallback. If it returns an error, the construction fails with that
// error.
type Initializer interface {
	Initialize() error
}

func initialize(instance any) error {
	if initr, ok := instance.(Initializer); ok {
		if err := initr.Initialize(); err != nil {
			return fmt.Errorf("initializer for %T failed: %w", instance, err)
		}
	}
	return nil
}
