package svcinject

// Lifetime decides whether a binding caches its instance.
type Lifetime int

const (
	Singleton Lifetime = iota // Singleton: one instance per resolver table
	Transient                 // Transient: a fresh instance on every resolution
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}
