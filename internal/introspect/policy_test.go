package introspect

import (
	"context"
	"errors"
	"testing"

	"github.com/wnxd/ntintrospect/introspect"
	"github.com/wnxd/ntintrospect/transport"
)

func testProc(udtb, kdtb introspect.DTB) introspect.Process {
	return introspect.Process{Handle: 1, DTBs: introspect.DTBPair{User: udtb, Kernel: kdtb}}
}

// TestPolicyDeniesKernelAddress is policy property 6.
func TestPolicyDeniesKernelAddress(t *testing.T) {
	s := transport.NewScripted()
	oc := fakeOracle{}
	var faults uint64
	p := newPolicy(s, oc, &faults, introspect.NopLogger)

	ok, err := p.tryInject(context.Background(), testProc(testDTB, testDTB), true, testDTB, introspect.VirtAddr(0xFFFF800000001000))
	if ok || !errors.Is(err, introspect.ErrPolicyDenied) {
		t.Fatalf("expected policy denial, got ok=%v err=%v", ok, err)
	}
	if faults != 0 {
		t.Fatalf("counter must not move on denial, got %d", faults)
	}
}

// TestPolicyDeniesAtOrAboveDispatch is policy property 7.
func TestPolicyDeniesAtOrAboveDispatch(t *testing.T) {
	s := transport.NewScripted()
	s.SetReg(introspect.RegCR8, uint64(introspect.IRQLDispatch))
	oc := fakeOracle{}
	var faults uint64
	p := newPolicy(s, oc, &faults, introspect.NopLogger)

	ok, err := p.tryInject(context.Background(), testProc(testDTB, testDTB), true, testDTB, introspect.VirtAddr(0x1000))
	if ok || !errors.Is(err, introspect.ErrPolicyDenied) {
		t.Fatalf("expected policy denial, got ok=%v err=%v", ok, err)
	}
	if faults != 0 {
		t.Fatalf("counter must not move, got %d", faults)
	}
}

// TestPolicyDeniesCR3Mismatch is policy property 8.
func TestPolicyDeniesCR3Mismatch(t *testing.T) {
	s := transport.NewScripted()
	s.SetReg(introspect.RegCR3, 0xdead000)
	oc := fakeOracle{}
	var faults uint64
	p := newPolicy(s, oc, &faults, introspect.NopLogger)

	proc := testProc(introspect.DTB(0x2000), introspect.DTB(0x3000))
	ok, err := p.tryInject(context.Background(), proc, true, proc.DTBs.User, introspect.VirtAddr(0x1000))
	if ok || !errors.Is(err, introspect.ErrPolicyDenied) {
		t.Fatalf("expected policy denial, got ok=%v err=%v", ok, err)
	}
	if faults != 0 {
		t.Fatalf("counter must not move, got %d", faults)
	}
}

// TestPolicyDeniesShortVMA is policy property 9.
func TestPolicyDeniesShortVMA(t *testing.T) {
	s := transport.NewScripted()
	s.SetReg(introspect.RegCR3, uint64(testDTB))
	oc := fakeOracle{vma: introspect.VMA{Addr: 0x10000, Size: 0x800}, found: true}
	var faults uint64
	p := newPolicy(s, oc, &faults, introspect.NopLogger)

	proc := testProc(testDTB, testDTB)
	ok, err := p.tryInject(context.Background(), proc, true, testDTB, introspect.VirtAddr(0x10000))
	if ok || !errors.Is(err, introspect.ErrPolicyDenied) {
		t.Fatalf("expected policy denial, got ok=%v err=%v", ok, err)
	}
	if faults != 0 {
		t.Fatalf("counter must not move, got %d", faults)
	}
}

// TestPolicyCounterIncrementsRegardlessOfInjectOutcome is policy
// property 10.
func TestPolicyCounterIncrementsRegardlessOfInjectOutcome(t *testing.T) {
	s := transport.NewScripted()
	s.SetReg(introspect.RegCR3, uint64(testDTB))
	s.Fail = func(op string) bool { return op == "InjectInterrupt" }
	oc := fakeOracle{vma: introspect.VMA{Addr: 0x10000, Size: 0x2000}, found: true}
	var faults uint64
	p := newPolicy(s, oc, &faults, introspect.NopLogger)

	proc := testProc(testDTB, testDTB)
	ok, err := p.tryInject(context.Background(), proc, true, testDTB, introspect.VirtAddr(0x10800))
	if ok || !errors.Is(err, introspect.ErrInjectionFailed) {
		t.Fatalf("expected injection-failed, got ok=%v err=%v", ok, err)
	}
	if faults != 1 {
		t.Fatalf("counter must be 1 regardless of primitive outcome, got %d", faults)
	}
}

func TestPolicyDeniesWithoutProcess(t *testing.T) {
	s := transport.NewScripted()
	oc := fakeOracle{}
	var faults uint64
	p := newPolicy(s, oc, &faults, introspect.NopLogger)

	ok, err := p.tryInject(context.Background(), introspect.Process{}, false, testDTB, introspect.VirtAddr(0x1000))
	if ok || !errors.Is(err, introspect.ErrPolicyDenied) {
		t.Fatalf("expected policy denial for missing process, got ok=%v err=%v", ok, err)
	}
	if faults != 0 {
		t.Fatalf("counter must not move, got %d", faults)
	}
}

type fakeOracle struct {
	vma   introspect.VMA
	found bool
}

func (o fakeOracle) VMAFind(introspect.Process, uint64) (introspect.VMA, bool) { return o.vma, o.found }
func (o fakeOracle) VMASpan(_ introspect.Process, vma introspect.VMA) (introspect.VMA, bool) {
	return vma, true
}
func (o fakeOracle) IsUserMode(cs uint64) bool { return introspect.IsUserMode(cs) }
