package svcinject

const (
	emptyString = ""
	pathSep     = " -> "

	// maxResolveDepth bounds nested construction/injection passes.
	maxResolveDepth = 256
)

type tag string

const (
	inject tag = "di.inject" // di.inject marks an injectable field; the tag value is its label. The field MUST be exported.
)

// Label is an opaque secondary key distinguishing several bindings of one contract type.
type Label string

// NoLabel selects the default binding of a contract type.
const NoLabel Label = emptyString

// Scope names an independently destroyable lifetime boundary.
type Scope string
