package oracle

import (
	"testing"

	"github.com/wnxd/ntintrospect/introspect"
)

func TestVMAFindContainment(t *testing.T) {
	o := New()
	proc := introspect.Process{Handle: 1}
	o.AddVMA(proc, introspect.VMA{Addr: 0x10000, Size: 0x1000})
	o.AddVMA(proc, introspect.VMA{Addr: 0x20000, Size: 0x2000})

	vma, ok := o.VMAFind(proc, 0x10800)
	if !ok || vma.Addr != 0x10000 {
		t.Fatalf("expected hit in first VMA, got %+v ok=%v", vma, ok)
	}

	_, ok = o.VMAFind(proc, 0x11000)
	if ok {
		t.Fatalf("address just past the first VMA must miss")
	}

	vma, ok = o.VMAFind(proc, 0x21fff)
	if !ok || vma.Addr != 0x20000 {
		t.Fatalf("expected hit in second VMA, got %+v ok=%v", vma, ok)
	}
}

func TestVMAFindUnknownProcess(t *testing.T) {
	o := New()
	_, ok := o.VMAFind(introspect.Process{Handle: 99}, 0x1000)
	if ok {
		t.Fatalf("unknown process must never produce a hit")
	}
}

func TestVMAFindInsertionOrderIndependent(t *testing.T) {
	o := New()
	proc := introspect.Process{Handle: 1}
	o.AddVMA(proc, introspect.VMA{Addr: 0x30000, Size: 0x1000})
	o.AddVMA(proc, introspect.VMA{Addr: 0x10000, Size: 0x1000})
	o.AddVMA(proc, introspect.VMA{Addr: 0x20000, Size: 0x1000})

	for _, addr := range []uint64{0x10500, 0x20500, 0x30500} {
		if _, ok := o.VMAFind(proc, addr); !ok {
			t.Fatalf("expected hit for %#x regardless of insertion order", addr)
		}
	}
}

func TestIsUserModeDelegates(t *testing.T) {
	o := New()
	if o.IsUserMode(0x1b) != introspect.IsUserMode(0x1b) {
		t.Fatalf("IsUserMode must delegate to introspect.IsUserMode")
	}
}
