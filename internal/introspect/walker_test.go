package introspect

import (
	"context"
	"testing"

	"github.com/wnxd/ntintrospect/introspect"
	"github.com/wnxd/ntintrospect/transport"
)

const testDTB = introspect.DTB(0x1000)

func setupPageTables(s *transport.Scripted, pfns [4]uint64, flags [4]uint64) {
	dtb := testDTB
	s.SetEntry(dtb.PML4Addr(), pfns[0]<<12|1|flags[0])
	s.SetEntry(pfns[0]*introspect.PageSize, pfns[1]<<12|1|flags[1])
	s.SetEntry(pfns[1]*introspect.PageSize, pfns[2]<<12|1|flags[2])
	s.SetEntry(pfns[2]*introspect.PageSize, pfns[3]<<12|1|flags[3])
}

// TestWalkResolvesFourLevelChain is walker property 1: with every
// entry on the path Valid and no LargePage bit set, the walk output
// equals pte.PFN*4096 | (vaddr & 0xFFF).
func TestWalkResolvesFourLevelChain(t *testing.T) {
	s := transport.NewScripted()
	setupPageTables(s, [4]uint64{2, 3, 4, 5}, [4]uint64{0, 0, 0, 0})
	w := newWalker(s)

	res, err := w.walk(context.Background(), testDTB, introspect.VirtAddr(0x123))
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if !res.Resolved {
		t.Fatalf("expected resolved, got %+v", res)
	}
	want := 5*uint64(introspect.PageSize) | 0x123
	if res.Phys != want {
		t.Fatalf("phys = %#x, want %#x", res.Phys, want)
	}
}

// TestWalkOneGiBLargePage is walker property 2.
func TestWalkOneGiBLargePage(t *testing.T) {
	s := transport.NewScripted()
	dtb := testDTB
	s.SetEntry(dtb.PML4Addr(), 2<<12|1)
	pdpteRaw := uint64(0x40000000ff) | 1<<7 | 1
	// vaddr below lies in the second GiB: PDPT index 1.
	s.SetEntry(2*introspect.PageSize+1*8, pdpteRaw)
	w := newWalker(s)

	vaddr := introspect.VirtAddr(0x40000000 + 0x12345)
	res, err := w.walk(context.Background(), dtb, vaddr)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if !res.Resolved {
		t.Fatalf("expected resolved, got %+v", res)
	}
	want := (pdpteRaw & 0x000fffffc0000000) | (uint64(vaddr) & 0x3fffffff)
	if res.Phys != want {
		t.Fatalf("phys = %#x, want %#x", res.Phys, want)
	}
}

// TestWalkTwoMiBLargePage is walker property 3.
func TestWalkTwoMiBLargePage(t *testing.T) {
	s := transport.NewScripted()
	dtb := testDTB
	s.SetEntry(dtb.PML4Addr(), 2<<12|1)
	s.SetEntry(2*introspect.PageSize, 3<<12|1)
	pdeRaw := uint64(0x4000000000e7) | 1<<7 | 1
	s.SetEntry(3*introspect.PageSize, pdeRaw)
	w := newWalker(s)

	vaddr := introspect.VirtAddr(0x12345)
	res, err := w.walk(context.Background(), dtb, vaddr)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	want := (pdeRaw & 0x000fffffffe00000) | (uint64(vaddr) & 0x1fffff)
	if res.Phys != want {
		t.Fatalf("phys = %#x, want %#x", res.Phys, want)
	}
}

// TestWalkInvalidEntryStopsShortEmptyProbes is walker property 4: an
// invalid entry anywhere on the path returns fault-required without
// issuing any read beyond that level.
func TestWalkInvalidEntryStopsShortEmptyProbes(t *testing.T) {
	s := transport.NewScripted()
	dtb := testDTB
	s.SetEntry(dtb.PML4Addr(), 2<<12|1)
	s.SetEntry(2*introspect.PageSize, 3<<12|1)
	// PD entry left at zero: not valid.
	reads := 0
	s.Fail = func(op string) bool {
		if op == "ReadPhysical" {
			reads++
		}
		return false
	}
	w := newWalker(s)

	res, err := w.walk(context.Background(), dtb, introspect.VirtAddr(0x123))
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if !res.FaultReq {
		t.Fatalf("expected fault-required, got %+v", res)
	}
	// PML4, PDPT and PD entries only; the PT level is never read.
	if reads != 3 {
		t.Fatalf("walker issued %d entry reads, want 3", reads)
	}
}

// TestWalkEndiannessRoundTrips is walker property 5: the little-endian
// ingress read of an entry that was written little-endian reproduces
// the same walk result regardless of how the raw bits look.
func TestWalkEndiannessRoundTrips(t *testing.T) {
	s := transport.NewScripted()
	setupPageTables(s, [4]uint64{2, 3, 4, 5}, [4]uint64{0, 0, 0, 0})
	w := newWalker(s)

	res1, _ := w.walk(context.Background(), testDTB, introspect.VirtAddr(0xabc))
	res2, _ := w.walk(context.Background(), testDTB, introspect.VirtAddr(0xabc))
	if want := 5*uint64(introspect.PageSize) | 0xabc; !res1.Resolved || res1.Phys != want {
		t.Fatalf("little-endian entries decoded to %+v, want phys %#x", res1, want)
	}
	if res1 != res2 {
		t.Fatalf("repeated walk not stable: %+v vs %+v", res1, res2)
	}
}

// TestZeroPageBranchUnreachable documents §9's open question: the
// ResolvedZero variant is carried in the data model but no walker
// branch ever produces it.
func TestZeroPageBranchUnreachable(t *testing.T) {
	s := transport.NewScripted()
	setupPageTables(s, [4]uint64{2, 3, 4, 5}, [4]uint64{0, 0, 0, 0})
	w := newWalker(s)

	res, err := w.walk(context.Background(), testDTB, introspect.VirtAddr(0))
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if res.ResolvedZero {
		t.Fatalf("walker must never produce ResolvedZero")
	}
}
