// Package introspect holds the concrete Core implementation: the
// page-table walker, the fault injection policy, and the paged-memory
// accessor that orchestrates them. Package introspect (the parent)
// only carries the public contracts; everything here is wiring.
package introspect

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/wnxd/ntintrospect/introspect"
)

const entrySize = 8

// walker resolves a guest virtual address to a guest physical address
// by walking the x86-64 four-level paging hierarchy over a Transport.
// It never caches entries: the hypervisor's view of guest physical
// memory may have changed since the last walk, in particular right
// after a fault injection (§4.C rationale).
type walker struct {
	t introspect.Transport
}

func newWalker(t introspect.Transport) *walker {
	return &walker{t}
}

// readEntry reads one 8-byte little-endian PTE at phys. The virtual
// address that produced phys has already been decomposed on ingress;
// entries themselves are native little-endian 64-bit words on the
// wire, same as the hardware representation they describe.
func (w *walker) readEntry(ctx context.Context, phys uint64) (introspect.MMPTE, error) {
	var buf [entrySize]byte
	ok, err := w.t.ReadPhysical(ctx, buf[:], phys)
	if err != nil {
		return 0, fmt.Errorf("walker: read entry at %#x: %w", phys, err)
	} else if !ok {
		return 0, fmt.Errorf("walker: read entry at %#x: %w", phys, introspect.ErrTransportFailure)
	}
	return introspect.MMPTE(binary.LittleEndian.Uint64(buf[:])), nil
}

// walk performs the four-level translation described in §4.C. It
// returns fault-required the first time it meets a non-valid entry,
// without issuing any further transport reads past that point
// (walker property 4), and never mutates guest state (invariant 2).
func (w *walker) walk(ctx context.Context, dtb introspect.DTB, virt introspect.VirtAddr) (introspect.TranslationResult, error) {
	pml4eAddr := dtb.PML4Addr() + virt.PML4Index()*entrySize
	pml4e, err := w.readEntry(ctx, pml4eAddr)
	if err != nil {
		return introspect.TranslationResult{}, err
	} else if !pml4e.Valid() {
		return introspect.FaultRequired(), nil
	}

	pdpteAddr := pml4e.PFN()*introspect.PageSize + virt.PDPTIndex()*entrySize
	pdpte, err := w.readEntry(ctx, pdpteAddr)
	if err != nil {
		return introspect.TranslationResult{}, err
	} else if !pdpte.Valid() {
		return introspect.FaultRequired(), nil
	}
	if pdpte.LargePage() {
		phys := (pdpte.Raw() & pdpteLargeMask) | (uint64(virt) & pdptOffsetMask)
		return introspect.Resolved(phys), nil
	}

	pdeAddr := pdpte.PFN()*introspect.PageSize + virt.PDIndex()*entrySize
	pde, err := w.readEntry(ctx, pdeAddr)
	if err != nil {
		return introspect.TranslationResult{}, err
	} else if !pde.Valid() {
		return introspect.FaultRequired(), nil
	}
	if pde.LargePage() {
		phys := (pde.Raw() & pdeLargeMask) | (uint64(virt) & pdOffsetMask)
		return introspect.Resolved(phys), nil
	}

	pteAddr := pde.PFN()*introspect.PageSize + virt.PTIndex()*entrySize
	pte, err := w.readEntry(ctx, pteAddr)
	if err != nil {
		return introspect.TranslationResult{}, err
	} else if !pte.Valid() {
		return introspect.FaultRequired(), nil
	}
	phys := pte.PFN()*introspect.PageSize | virt.Offset()
	return introspect.Resolved(phys), nil
}

const (
	// pdpteLargeMask isolates bits [51:30]: a 1 GiB-aligned physical
	// frame at the PDPT level.
	pdpteLargeMask = 0x000fffffc0000000
	pdptOffsetMask = 0x3fffffff

	// pdeLargeMask isolates bits [51:21]: a 2 MiB-aligned physical
	// frame at the PD level.
	pdeLargeMask = 0x000fffffffe00000
	pdOffsetMask = 0x1fffff
)
