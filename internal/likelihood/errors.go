// Package likelihood assembles maximum-likelihood phylogenetic models: it
// turns a tree, a substitution model, and scoped parameter rules into an
// optimisable likelihood function over aligned or unaligned sequences.
package likelihood

import "errors"

// Sentinel errors for the rule and controller surface. Errors raised by the
// underlying parameter engine pass through unwrapped.
var (
	// ErrConfiguration flags misuse of the controller itself, such as
	// binding data of the wrong shape or calling an unsupported capability.
	ErrConfiguration = errors.New("likelihood configuration error")
	// ErrScope flags rules whose scope selectors are contradictory or
	// resolve to nothing.
	ErrScope = errors.New("invalid parameter scope")
	// ErrDimension flags payloads of the wrong size for their parameter.
	ErrDimension = errors.New("dimension mismatch")
	// ErrValue flags inconsistent or out-of-range value settings.
	ErrValue = errors.New("invalid parameter value")
)
