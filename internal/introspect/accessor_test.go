package introspect

import (
	"context"
	"testing"

	"github.com/wnxd/ntintrospect/introspect"
	"github.com/wnxd/ntintrospect/transport"
)

func newTestAccessor(s *transport.Scripted, oc introspect.ProcessOracle, faults *uint64) *accessor {
	w := newWalker(s)
	p := newPolicy(s, oc, faults, introspect.NopLogger)
	return newAccessor(s, w, p)
}

// TestScenarioS1SimpleResolvedRead: DTB=0x1000, a fully valid 4-level
// chain PFN 2/3/4/5, read_page(dst, 0) reads physical page 0x5000 and
// succeeds.
func TestScenarioS1SimpleResolvedRead(t *testing.T) {
	s := transport.NewScripted()
	setupPageTables(s, [4]uint64{2, 3, 4, 5}, [4]uint64{0, 0, 0, 0})
	s.SetBytes(5*introspect.PageSize, []byte{0xAA, 0xBB})

	var faults uint64
	a := newTestAccessor(s, fakeOracle{}, &faults)

	dst := make([]byte, introspect.PageSize)
	ok, err := a.readPage(context.Background(), introspect.Process{}, false, testDTB, dst, introspect.VirtAddr(0))
	if err != nil {
		t.Fatalf("readPage: %v", err)
	}
	if !ok {
		t.Fatalf("expected success")
	}
	if dst[0] != 0xAA || dst[1] != 0xBB {
		t.Fatalf("unexpected page content: %x", dst[:4])
	}
}

// TestScenarioS2TwoMiBLargePage mirrors the walker-level test but goes
// through virtualToPhysical.
func TestScenarioS2TwoMiBLargePage(t *testing.T) {
	s := transport.NewScripted()
	dtb := testDTB
	s.SetEntry(dtb.PML4Addr(), 2<<12|1)
	s.SetEntry(2*introspect.PageSize, 3<<12|1)
	pdeRaw := uint64(0x4000000000e7) | 1<<7 | 1
	s.SetEntry(3*introspect.PageSize, pdeRaw)

	var faults uint64
	a := newTestAccessor(s, fakeOracle{}, &faults)

	phys, ok, err := a.virtualToPhysical(context.Background(), introspect.Process{}, false, dtb, introspect.VirtAddr(0x12345))
	if err != nil {
		t.Fatalf("virtualToPhysical: %v", err)
	}
	if !ok {
		t.Fatalf("expected resolved")
	}
	want := (pdeRaw & 0x000fffffffe00000) | (0x12345 & 0x1fffff)
	if phys != want {
		t.Fatalf("phys = %#x, want %#x", phys, want)
	}
}

// TestScenarioS3FaultRequiredAccepted: fault required, user-mode,
// policy accepts; inject vector 14 code=4 CR2=addr, counter=1,
// follow-up virtualised read succeeds.
func TestScenarioS3FaultRequiredAccepted(t *testing.T) {
	s := transport.NewScripted()
	dtb := testDTB
	s.SetEntry(dtb.PML4Addr(), 2<<12|1)
	s.SetEntry(2*introspect.PageSize, 3<<12|1)
	s.SetEntry(3*introspect.PageSize, 4<<12|1)
	// PT entry left invalid: PT level not-valid -> fault required.
	s.SetReg(introspect.RegCR3, uint64(dtb))
	s.SetReg(introspect.RegCS, 0x1b) // CPL 3, user mode.

	oc := fakeOracle{vma: introspect.VMA{Addr: 0x10000, Size: 0x10000}, found: true}
	var faults uint64
	a := newTestAccessor(s, oc, &faults)

	// Script the post-injection virtualised path: once the accessor
	// issues its virtualised read, the PT entry for page 0x10000
	// (PT index 0x10) is valid, pointing at PFN 9.
	s.Fail = func(op string) bool {
		if op == "ReadVirtualWithDTB" {
			s.SetEntry(4*introspect.PageSize+0x10*8, 9<<12|1)
		}
		return false
	}

	proc := introspect.Process{Handle: 1, DTBs: introspect.DTBPair{User: dtb, Kernel: dtb}}
	dst := make([]byte, introspect.PageSize)
	ok, err := a.readPage(context.Background(), proc, true, dtb, dst, introspect.VirtAddr(0x10800))
	if err != nil {
		t.Fatalf("readPage: %v", err)
	}
	if !ok {
		t.Fatalf("expected success after injection")
	}
	if faults != 1 {
		t.Fatalf("fault counter = %d, want 1", faults)
	}
	inj := s.Injections()
	if len(inj) != 1 {
		t.Fatalf("expected exactly one injection, got %d", len(inj))
	}
	if inj[0].Vector != 14 || inj[0].ErrorCode != 0b100 || inj[0].CR2 != 0x10800 {
		t.Fatalf("unexpected injection: %+v", inj[0])
	}
	if len(s.RanToCurrent()) != 1 {
		t.Fatalf("expected run-to-current to have been invoked once")
	}
}

// TestScenarioS4KernelAddressShortCircuits: a kernel address whose
// walk ends fault-required never injects and the op fails.
func TestScenarioS4KernelAddressShortCircuits(t *testing.T) {
	s := transport.NewScripted()
	dtb := testDTB
	s.SetEntry(dtb.PML4Addr(), 2<<12|1)
	s.SetEntry(2*introspect.PageSize, 3<<12|1)
	s.SetEntry(3*introspect.PageSize, 4<<12|1)
	// The entries above sit at index 0; this address uses PML4 index
	// 0x100, which is unset, so the walk ends fault-required there.

	oc := fakeOracle{}
	var faults uint64
	a := newTestAccessor(s, oc, &faults)

	proc := introspect.Process{Handle: 1, DTBs: introspect.DTBPair{User: dtb, Kernel: dtb}}
	dst := make([]byte, introspect.PageSize)
	ok, err := a.readPage(context.Background(), proc, true, dtb, dst, introspect.VirtAddr(0xFFFF800000001000))
	if ok || err == nil {
		t.Fatalf("expected failure, got ok=%v err=%v", ok, err)
	}
	if faults != 0 {
		t.Fatalf("counter must not move, got %d", faults)
	}
	if len(s.Injections()) != 0 {
		t.Fatalf("must not have injected")
	}
}

// TestScenarioS5DispatchIRQL: same as S3 but at dispatch IRQL; no
// injection, operation fails, counter unchanged.
func TestScenarioS5DispatchIRQL(t *testing.T) {
	s := transport.NewScripted()
	dtb := testDTB
	s.SetEntry(dtb.PML4Addr(), 2<<12|1)
	s.SetEntry(2*introspect.PageSize, 3<<12|1)
	s.SetEntry(3*introspect.PageSize, 4<<12|1)
	s.SetReg(introspect.RegCR3, uint64(dtb))
	s.SetReg(introspect.RegCR8, uint64(introspect.IRQLDispatch))
	s.SetReg(introspect.RegCS, 0x1b)

	oc := fakeOracle{vma: introspect.VMA{Addr: 0x10000, Size: 0x10000}, found: true}
	var faults uint64
	a := newTestAccessor(s, oc, &faults)

	proc := introspect.Process{Handle: 1, DTBs: introspect.DTBPair{User: dtb, Kernel: dtb}}
	dst := make([]byte, introspect.PageSize)
	ok, err := a.readPage(context.Background(), proc, true, dtb, dst, introspect.VirtAddr(0x10800))
	if ok || err == nil {
		t.Fatalf("expected failure at dispatch IRQL, got ok=%v err=%v", ok, err)
	}
	if faults != 0 {
		t.Fatalf("counter must not move, got %d", faults)
	}
}

// TestScenarioS6RetryFails: policy accepts, injection reports false;
// counter=1, operation fails.
func TestScenarioS6RetryFails(t *testing.T) {
	s := transport.NewScripted()
	dtb := testDTB
	s.SetEntry(dtb.PML4Addr(), 2<<12|1)
	s.SetEntry(2*introspect.PageSize, 3<<12|1)
	s.SetEntry(3*introspect.PageSize, 4<<12|1)
	s.SetReg(introspect.RegCR3, uint64(dtb))
	s.SetReg(introspect.RegCS, 0x1b)
	s.Fail = func(op string) bool { return op == "InjectInterrupt" }

	oc := fakeOracle{vma: introspect.VMA{Addr: 0x10000, Size: 0x10000}, found: true}
	var faults uint64
	a := newTestAccessor(s, oc, &faults)

	proc := introspect.Process{Handle: 1, DTBs: introspect.DTBPair{User: dtb, Kernel: dtb}}
	dst := make([]byte, introspect.PageSize)
	ok, err := a.readPage(context.Background(), proc, true, dtb, dst, introspect.VirtAddr(0x10800))
	if ok || err == nil {
		t.Fatalf("expected failure, got ok=%v err=%v", ok, err)
	}
	if faults != 1 {
		t.Fatalf("fault counter = %d, want 1", faults)
	}
}
