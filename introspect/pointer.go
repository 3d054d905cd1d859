package introspect

import "context"

// PhysPointer is a convenience handle onto one physical address,
// adapted from the emulator package's Pointer type this core was
// built from: there addr was a guest-virtual address serviced by a
// local CPU emulator, here it is a guest-physical address serviced by
// the (external) hypervisor Transport.
type PhysPointer struct {
	t    Transport
	addr uint64
}

func ToPhysPointer(t Transport, addr uint64) PhysPointer {
	return PhysPointer{t, addr}
}

func (p PhysPointer) Address() uint64 { return p.addr }

func (p PhysPointer) Add(offset uint64) PhysPointer {
	return PhysPointer{p.t, p.addr + offset}
}

func (p PhysPointer) ReadAt(ctx context.Context, dst []byte) (bool, error) {
	return p.t.ReadPhysical(ctx, dst, p.addr)
}

func (p PhysPointer) WriteAt(ctx context.Context, src []byte) (bool, error) {
	return p.t.WritePhysical(ctx, p.addr, src)
}
