package introspect

import (
	"context"
	"io"
)

// Core is the public facade this package exposes — the only surface a
// CLI/REPL or scripting layer built on top of this core consumes.
// Its concrete implementation lives in internal/introspect, the same
// split the debugger package this core was adapted from keeps between
// its public Debugger interface and internal.Dbg.
type Core interface {
	io.Closer

	// VirtualToPhysical walks vaddr under dtb. On fault-required it
	// attempts one injection and re-walks; it never falls back to a
	// virtualised transport read, since there is no physical address
	// to report without a successful walk (§4.E).
	VirtualToPhysical(ctx context.Context, proc *Process, dtb DTB, vaddr VirtAddr) (phys uint64, ok bool, err error)

	// Read fills dst starting at vaddr, splitting the request into
	// PageSize-aligned accessor calls. Read is all-or-nothing: a
	// partial page fill anywhere in the range fails the whole call.
	Read(ctx context.Context, proc *Process, dtb DTB, dst []byte, vaddr VirtAddr) (bool, error)

	// Write is Read's symmetric counterpart. There is no zero-page
	// shortcut on write (§4.E).
	Write(ctx context.Context, proc *Process, dtb DTB, vaddr VirtAddr, src []byte) (bool, error)

	// SwitchProcess returns a scoped handle bound to proc's DTBs.
	// Closing it — success or failure — restores whatever DTB binding
	// was active before the switch (§9 re-architecture guidance).
	SwitchProcess(proc Process) (ProcessScope, error)

	// FaultCount returns the current value of num_page_faults: a
	// monotonically increasing count of successful injection attempts,
	// incremented once per attempt regardless of the subsequent
	// retry's outcome (invariant 5).
	FaultCount() uint64

	StateLayer
}

// ProcessScope is the live binding returned by SwitchProcess. DTB
// returns the user DTB currently bound, for callers that want to
// issue accessor calls directly against the bound process without
// re-threading the DTB through every call.
type ProcessScope interface {
	io.Closer
	Process() Process
	DTB() DTB
}
