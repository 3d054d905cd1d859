package introspect

import (
	"context"
	"io"
)

// Transport is the hypervisor shared-memory channel this core treats
// as an external collaborator (components A and B of the design).
// A concrete implementation lives in package transport; this package
// only depends on the contract, mirroring how the debugger package
// this core was adapted from depends on emulator.Emulator without
// caring how a given architecture backend is wired underneath.
//
// CPUID is fixed to 0 for every call in this design; multi-VCPU
// support is a future extension and is not threaded through the
// signatures below.
type Transport interface {
	io.Closer

	// ReadPhysical reads len(dst) bytes from guest physical memory at
	// phys into dst. Returns false (never a partial read) on failure.
	ReadPhysical(ctx context.Context, dst []byte, phys uint64) (bool, error)

	// WritePhysical writes src to guest physical memory at phys.
	WritePhysical(ctx context.Context, phys uint64, src []byte) (bool, error)

	// ReadVirtualWithDTB performs a transport-side MMU walk using dtb
	// and reads len(dst) bytes from vaddr. Used only after a
	// successful fault injection, once the walker's own table walk is
	// known to be populated.
	ReadVirtualWithDTB(ctx context.Context, dtb DTB, dst []byte, vaddr uint64) (bool, error)

	// WriteVirtualWithDTB is the write-side counterpart.
	WriteVirtualWithDTB(ctx context.Context, dtb DTB, vaddr uint64, src []byte) (bool, error)

	// RegisterRead reads one VCPU register. The core itself reads CR3,
	// CR8 and CS.
	RegisterRead(ctx context.Context, reg Reg) (uint64, error)

	// InjectInterrupt injects vector 14 (#PF) with the given error
	// code and CR2 value. Reports false if the hypervisor primitive
	// failed; the caller is responsible for the fault counter — this
	// method never increments it itself.
	InjectInterrupt(ctx context.Context, vector uint8, errorCode uint64, cr2 uint64) (bool, error)

	// RunToCurrent resumes the VM until its instruction pointer
	// returns to the value it held at call entry, letting an injected
	// handler run to completion. Blocks until the guest's #PF handler
	// returns; there is no cancellation of the in-guest side once this
	// has been called (§5). reasonTag is a free-form diagnostic label;
	// the reference transport sends it to the server as the request
	// payload.
	RunToCurrent(ctx context.Context, reasonTag string) error
}
