package introspect

// ProcessOracle is the process/VMA contract this core consumes
// (component F). It is external to the core: production callers back
// it with live NT _EPROCESS/VAD walks, entirely outside this package.
// Package oracle ships a minimal in-memory implementation for tests
// and the reference CLI harness.
//
// Every method must be pure with respect to the paused VM: repeated
// calls with the same arguments return equal results until the guest
// is resumed. The core relies on this to walk-then-decide without
// re-checking staleness.
type ProcessOracle interface {
	// VMAFind returns the VMA covering addr in proc's address space,
	// or ok==false if none does.
	VMAFind(proc Process, addr uint64) (vma VMA, ok bool)

	// VMASpan returns the contiguous extent of vma. Most
	// implementations can answer this directly from the VMA value
	// itself; the method exists so an oracle may re-derive a fresher
	// span without the core assuming VMA is self-describing.
	VMASpan(proc Process, vma VMA) (span VMA, ok bool)

	// IsUserMode reports whether a CS selector value corresponds to
	// ring 3. Delegates to the package-level IsUserMode by default;
	// declared on the interface so an oracle backed by a real guest
	// can special-case unusual segment setups.
	IsUserMode(cs uint64) bool
}
