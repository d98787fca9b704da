package svcinject

import (
	"fmt"

	"go.uber.org/zap"
)

// Bootstrapper contributes registrations to a Context and takes part in its phases.
type Bootstrapper interface {
	// Boot registers every type that should be injected or receive injection.
	// Do NOT rely on resolution here: other units may not have registered yet.
	Boot(r *Registry) error

	// BootCompleted runs after every unit of the Context has booted and the batch is materialized.
	// Safe to resolve any binding here.
	BootCompleted(r *Registry) error

	// ResolveQueued injects the instances queued during Boot.
	ResolveQueued(r *Registry) error
}

// BaseBootstrapper is an embeddable struct that provides the resolve queue and a no-op
// BootCompleted. Embed it in your unit and implement Boot.
//
//	type AudioUnit struct{ svcinject.BaseBootstrapper }
//
//	func (u *AudioUnit) Boot(r *svcinject.Registry) error {
//		svcinject.Bind[Mixer, *mixer](r).Singleton()
//		u.QueueForResolve(existingPlayer)
//		return nil
//	}
type BaseBootstrapper struct {
	queue []any
}

func (b *BaseBootstrapper) BootCompleted(_ *Registry) error { return nil }

// QueueForResolve schedules an externally constructed instance for injection after all units booted.
func (b *BaseBootstrapper) QueueForResolve(instance any) {
	if instance != nil {
		b.queue = append(b.queue, instance)
	}
}

// Queued returns the number of instances waiting for injection.
func (b *BaseBootstrapper) Queued() int { return len(b.queue) }

// ResolveQueued drains the queue in FIFO order. Instances queued while draining are drained too.
func (b *BaseBootstrapper) ResolveQueued(r *Registry) error {
	for len(b.queue) > 0 {
		instance := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		if err := r.ResolveDependencies(instance); err != nil {
			return fmt.Errorf("resolve queued %T: %w", instance, err)
		}
	}
	return nil
}

// Phase is the bootstrap state of a Context.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRegistering
	PhaseMaterializing
	PhaseBooted
	PhaseResolvingQueue
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRegistering:
		return "registering"
	case PhaseMaterializing:
		return "materializing"
	case PhaseBooted:
		return "booted"
	case PhaseResolvingQueue:
		return "resolving-queue"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Context orchestrates one bootstrap run of its units against a Registry.
//
//  1. Create: ctx := svcinject.NewContext(registry, units...)
//  2. Run: ctx.Run() boots, materializes, completes and drains queues, in unit order
//  3. Resolve freely once ctx.Phase() is PhaseReady
//
// A Context runs once. Several Contexts may share one Registry, e.g. a process-wide
// Context followed by one per scope.
type Context struct {
	registry *Registry
	units    []Bootstrapper
	phase    Phase
	log      *zap.Logger
}

func NewContext(r *Registry, units ...Bootstrapper) *Context {
	return &Context{
		registry: r,
		units:    units,
		phase:    PhaseIdle,
		log:      r.log,
	}
}

// Add appends a unit. Units added after Run starts are ignored by that run.
func (c *Context) Add(unit Bootstrapper) {
	c.units = append(c.units, unit)
}

// Phase returns the current state.
func (c *Context) Phase() Phase { return c.phase }

// Registry returns the registry the Context runs against.
func (c *Context) Registry() *Registry { return c.registry }

// Run performs the bootstrap. Running a Context twice is a programming error and panics
// with ErrContextAlreadyRun.
func (c *Context) Run() error {
	if c.phase != PhaseIdle {
		panic(fmt.Errorf("%w: phase %s", ErrContextAlreadyRun, c.phase))
	}
	units := append([]Bootstrapper(nil), c.units...)

	c.enter(PhaseRegistering)
	c.registry.BeginRegistrationBatch()
	for _, unit := range units {
		if err := unit.Boot(c.registry); err != nil {
			return fmt.Errorf("boot %T: %w", unit, err)
		}
	}

	c.enter(PhaseMaterializing)
	if err := c.registry.EndRegistrationBatch(); err != nil {
		return fmt.Errorf("materialize: %w", err)
	}

	c.enter(PhaseBooted)
	for _, unit := range units {
		if err := unit.BootCompleted(c.registry); err != nil {
			return fmt.Errorf("boot completed %T: %w", unit, err)
		}
	}

	c.enter(PhaseResolvingQueue)
	for _, unit := range units {
		if err := unit.ResolveQueued(c.registry); err != nil {
			return fmt.Errorf("resolve queued %T: %w", unit, err)
		}
	}

	c.enter(PhaseReady)
	return nil
}

func (c *Context) enter(phase Phase) {
	c.log.Debug("context phase", zap.Stringer("from", c.phase), zap.Stringer("to", phase), zap.Int("units", len(c.units)))
	c.phase = phase
}
