package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/wnxd/ntintrospect/introspect"
)

// Scripted is an in-memory introspect.Transport backed by a flat
// physical-memory image and a small register file, for tests that
// need to drive S1-style walker/policy scenarios without a real
// hypervisor channel. It is exported (not a _test.go type) so
// internal/introspect's own tests can script one directly, the same
// way the teacher's architecture backends are tested against
// emulator.Emulator fakes rather than real hardware.
type Scripted struct {
	mu   sync.Mutex
	mem  map[uint64][]byte
	regs map[introspect.Reg]uint64
	inj  []injectCall
	ran  []string
	Fail func(op string) bool
}

type injectCall struct {
	Vector    uint8
	ErrorCode uint64
	CR2       uint64
}

func NewScripted() *Scripted {
	return &Scripted{
		mem:  make(map[uint64][]byte),
		regs: make(map[introspect.Reg]uint64),
	}
}

func (s *Scripted) Close() error { return nil }

// SetReg scripts the value register reads for reg will return.
func (s *Scripted) SetReg(reg introspect.Reg, val uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg] = val
}

// SetEntry installs an 8-byte little-endian page-table entry at phys.
func (s *Scripted) SetEntry(phys uint64, raw uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], raw)
	s.SetBytes(phys, b[:])
}

// SetBytes installs arbitrary physical memory content starting at phys.
func (s *Scripted) SetBytes(phys uint64, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	s.mem[phys] = cp
}

// Injections returns every InjectInterrupt call observed so far.
func (s *Scripted) Injections() []injectCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]injectCall(nil), s.inj...)
}

// RanToCurrent returns every reasonTag passed to RunToCurrent.
func (s *Scripted) RanToCurrent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ran...)
}

func (s *Scripted) shouldFail(op string) bool {
	if s.Fail == nil {
		return false
	}
	return s.Fail(op)
}

func (s *Scripted) ReadPhysical(ctx context.Context, dst []byte, phys uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail("ReadPhysical") {
		return false, fmt.Errorf("scripted: %w", introspect.ErrTransportFailure)
	}
	b, ok := s.mem[phys]
	if !ok {
		clear(dst)
		return true, nil
	}
	n := copy(dst, b)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return true, nil
}

func (s *Scripted) WritePhysical(ctx context.Context, phys uint64, src []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail("WritePhysical") {
		return false, fmt.Errorf("scripted: %w", introspect.ErrTransportFailure)
	}
	cp := make([]byte, len(src))
	copy(cp, src)
	s.mem[phys] = cp
	return true, nil
}

// ReadVirtualWithDTB re-walks the same scripted page tables, modeling
// the transport-side MMU path a real hypervisor exposes post-injection.
func (s *Scripted) ReadVirtualWithDTB(ctx context.Context, dtb introspect.DTB, dst []byte, vaddr uint64) (bool, error) {
	if s.shouldFail("ReadVirtualWithDTB") {
		return false, fmt.Errorf("scripted: %w", introspect.ErrTransportFailure)
	}
	phys, ok, err := s.walkForTest(ctx, dtb, vaddr)
	if err != nil || !ok {
		return false, err
	}
	return s.ReadPhysical(ctx, dst, phys+(vaddr&(introspect.PageSize-1)))
}

func (s *Scripted) WriteVirtualWithDTB(ctx context.Context, dtb introspect.DTB, vaddr uint64, src []byte) (bool, error) {
	if s.shouldFail("WriteVirtualWithDTB") {
		return false, fmt.Errorf("scripted: %w", introspect.ErrTransportFailure)
	}
	phys, ok, err := s.walkForTest(ctx, dtb, vaddr)
	if err != nil || !ok {
		return false, err
	}
	return s.WritePhysical(ctx, phys+(vaddr&(introspect.PageSize-1)), src)
}

// walkForTest does the minimal walk needed to model a post-injection
// virtualised access; it is deliberately simpler than the production
// walker (no large-page handling) since scripted scenarios exercising
// it always target a freshly faulted-in 4 KiB page.
func (s *Scripted) walkForTest(ctx context.Context, dtb introspect.DTB, vaddr uint64) (uint64, bool, error) {
	va := introspect.VirtAddr(vaddr)
	read := func(addr uint64) (uint64, bool) {
		var b [8]byte
		ok, _ := s.ReadPhysical(ctx, b[:], addr)
		if !ok {
			return 0, false
		}
		return binary.LittleEndian.Uint64(b[:]), true
	}
	pml4e, _ := read(dtb.PML4Addr() + va.PML4Index()*8)
	if !introspect.MMPTE(pml4e).Valid() {
		return 0, false, nil
	}
	pdpte, _ := read(introspect.MMPTE(pml4e).PFN()*introspect.PageSize + va.PDPTIndex()*8)
	if !introspect.MMPTE(pdpte).Valid() {
		return 0, false, nil
	}
	pde, _ := read(introspect.MMPTE(pdpte).PFN()*introspect.PageSize + va.PDIndex()*8)
	if !introspect.MMPTE(pde).Valid() {
		return 0, false, nil
	}
	pte, _ := read(introspect.MMPTE(pde).PFN()*introspect.PageSize + va.PTIndex()*8)
	if !introspect.MMPTE(pte).Valid() {
		return 0, false, nil
	}
	return introspect.MMPTE(pte).PFN() * introspect.PageSize, true, nil
}

func (s *Scripted) RegisterRead(ctx context.Context, reg introspect.Reg) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail("RegisterRead") {
		return 0, fmt.Errorf("scripted: %w", introspect.ErrTransportFailure)
	}
	return s.regs[reg], nil
}

func (s *Scripted) InjectInterrupt(ctx context.Context, vector uint8, errorCode uint64, cr2 uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inj = append(s.inj, injectCall{vector, errorCode, cr2})
	if s.shouldFail("InjectInterrupt") {
		return false, nil
	}
	return true, nil
}

func (s *Scripted) RunToCurrent(ctx context.Context, reasonTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ran = append(s.ran, reasonTag)
	if s.shouldFail("RunToCurrent") {
		return fmt.Errorf("scripted: %w", introspect.ErrTransportFailure)
	}
	return nil
}
