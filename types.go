package objelect

import "github.com/objelect/objelect/types"

// Re-export types from the internal types package.
//
// This file provides a stable, backward-compatible public API for the library's
// core types and interfaces. It uses type aliases to re-export definitions
// from the `types` subpackage, which contains the actual implementations.
//
// This pattern solves the "import cycle" problem by allowing store adapters
// and internal packages to depend on `types` without depending on the root
// `objelect` package, while still providing a convenient `objelect.State`,
// `objelect.Store`, etc. for users.
type (
	State       = types.State
	LeaseRecord = types.LeaseRecord
	Version     = types.Version
	Callbacks   = types.Callbacks
)

// Re-export interfaces from the internal types package for convenience.
type (
	Store            = types.Store
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export State constants from the internal types package.
const (
	StateIdle      = types.StateIdle
	StateAcquiring = types.StateAcquiring
	StateLeading   = types.StateLeading
	StateReleased  = types.StateReleased
	StateShutdown  = types.StateShutdown
)

// NoVersion is the zero Version, re-exported for adapter implementors.
const NoVersion = types.NoVersion
