// Package introspect resolves guest virtual addresses in a paused
// Windows-NT guest to guest physical addresses, reads and writes guest
// pages, and — when a page is legitimately mapped but currently paged
// out — injects a synthetic page fault so the guest faults it back in.
package introspect

const (
	PageSize  = 0x1000
	pageShift = 12

	pml4Shift = 39
	pdptShift = 30
	pdShift   = 21
	ptShift   = 12

	pageIndexMask = 0x1ff

	// PFN fields are stored left-shifted by 12 in every PTE level; the
	// mask below isolates the frame bits NT actually uses (bits 12-51).
	pfnMask uint64 = 0x000ffffffffff000

	dtbAddrMask uint64 = 0x000ffffffffff000

	// kernelHalfMask isolates the canonical sign-extension bits; any
	// address with one of them set lives in kernel space.
	kernelHalfMask uint64 = 0xfff0000000000000
)

// VirtAddr is a guest virtual address, decomposed per the x86-64
// four-level paging hierarchy (PML4/PDPT/PD/PT). Canonicality is not
// enforced; bits above [47] are ignored by the walker exactly as they
// are ignored by hardware when not checked.
type VirtAddr uint64

func (v VirtAddr) PML4Index() uint64 { return (uint64(v) >> pml4Shift) & pageIndexMask }
func (v VirtAddr) PDPTIndex() uint64 { return (uint64(v) >> pdptShift) & pageIndexMask }
func (v VirtAddr) PDIndex() uint64   { return (uint64(v) >> pdShift) & pageIndexMask }
func (v VirtAddr) PTIndex() uint64   { return (uint64(v) >> ptShift) & pageIndexMask }

// Offset returns the low 12 bits: the byte offset within the page.
func (v VirtAddr) Offset() uint64 { return uint64(v) & (PageSize - 1) }

// Page truncates v to its containing page-aligned address.
func (v VirtAddr) Page() VirtAddr { return VirtAddr(uint64(v) &^ (PageSize - 1)) }

// IsKernelHalf reports whether v falls in the kernel half of the
// address space: any of bits [63:52] set. Used by the injection
// policy's first predicate; the walker itself does not care.
func (v VirtAddr) IsKernelHalf() bool { return uint64(v)&kernelHalfMask != 0 }

// DTB is a Directory Table Base: the physical address of a PML4 page.
// Only bits [51:12] are significant; the low 12 bits are ignored on
// walk entry, matching CR3's hardware semantics.
type DTB uint64

func (d DTB) PML4Addr() uint64 { return uint64(d) & dtbAddrMask }

// DTBPair is the kernel/user DTB pair NT maintains per process. udtb
// equals kdtb on guests without KPTI (pre-Meltdown mitigation). The
// caller fills both fields; the ProcessOracle does not supply them.
type DTBPair struct {
	Kernel DTB
	User   DTB
}

// Matches reports whether cr3 names either half of the pair.
func (p DTBPair) Matches(cr3 DTB) bool {
	return cr3 == p.Kernel || cr3 == p.User
}

// MMPTE is a raw 64-bit x86-64 page-table entry. The core never
// decodes the software-defined encodings NT uses for non-present PT
// entries (prototype, transition, pagefile PTE) — any entry with
// Valid()==false is terminal and means "fault required", regardless of
// level.
type MMPTE uint64

func (e MMPTE) Raw() uint64 { return uint64(e) }

// Valid is bit 0: the entry describes a mapped page or table at this level.
func (e MMPTE) Valid() bool { return e&1 != 0 }

// LargePage is bit 7: at the PDPT level a 1 GiB mapping, at the PD
// level a 2 MiB mapping. Meaningless at PML4 and PT level.
func (e MMPTE) LargePage() bool { return e&(1<<7) != 0 }

// PFN is the physical frame number of the next-level table, or of the
// mapped page for a terminal entry. Multiply by PageSize for a byte address.
func (e MMPTE) PFN() uint64 { return (uint64(e) & pfnMask) >> pageShift }

// TranslationResult is the tagged outcome of a page-table walk. Exactly
// one of the three predicates (Resolved/ResolvedZero/FaultRequired) is
// true; Phys is only meaningful when Resolved is true.
//
// ResolvedZero is carried for data-model parity with the source this
// core was distilled from (a "zero page" terminal state) but is never
// produced by the current walker — NT's zero-page optimization is not
// decoded. Kept as a reserved, documented dead branch rather than
// dropped; see the walker tests for a standing assertion that it is
// unreachable.
type TranslationResult struct {
	Phys         uint64
	Resolved     bool
	ResolvedZero bool
	FaultReq     bool
}

func Resolved(phys uint64) TranslationResult {
	return TranslationResult{Phys: phys, Resolved: true}
}

func ResolvedZero() TranslationResult {
	return TranslationResult{ResolvedZero: true}
}

func FaultRequired() TranslationResult {
	return TranslationResult{FaultReq: true}
}

// IRQL is the NT interrupt-request level, read from CR8 on x86-64.
type IRQL uint64

const (
	IRQLPassive  IRQL = 0
	IRQLAPC      IRQL = 1
	IRQLDispatch IRQL = 2
)

// BelowDispatch is the only IRQL predicate the policy consumes: above
// it, an injected page fault is a guaranteed bugcheck in NT.
func (i IRQL) BelowDispatch() bool { return i < IRQLDispatch }

// Reg enumerates the x86-64 VCPU registers a Transport can be asked to
// read; the core itself reads CR3, CR8 and CS.
type Reg int

const (
	RegCR2 Reg = iota
	RegCR3
	RegCR8
	RegCS
	RegRIP
)

// Process is an opaque handle to a guest process, plus the DTB pair
// NT maintains for it. The core treats the handle as opaque; only the
// oracle interprets it.
type Process struct {
	Handle uintptr
	DTBs   DTBPair
}

// VMA is a contiguous mapped region of a process's address space.
type VMA struct {
	Addr uint64
	Size uint64
}

// Contains reports whether the whole page starting at addr fits
// within the VMA — predicate 6 of the injection policy.
func (v VMA) Contains(addr uint64) bool {
	return addr >= v.Addr && addr+PageSize <= v.Addr+v.Size
}

// IsUserMode reports whether a CS selector's CPL (bits 0-1) is 3, the
// standard x86 convention for ring 3. Used to compute the injected
// #PF error code's user/supervisor bit.
func IsUserMode(cs uint64) bool {
	return cs&0x3 == 3
}
