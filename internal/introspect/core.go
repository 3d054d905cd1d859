package introspect

import (
	"context"
	"fmt"

	"github.com/wnxd/ntintrospect/introspect"
)

// core is the concrete introspect.Core, wiring the Transport (A, B)
// the caller supplies with the in-package walker, policy and
// accessor, plus an external ProcessOracle (F) and an optional
// StateLayer. It mirrors the teacher's Dbg struct: one facade
// embedding several single-purpose managers behind one Init/Close
// lifecycle, generalized here to introvm's translate/access/switch
// responsibilities instead of memory/hook/file/module/task.
type core struct {
	t        introspect.Transport
	accessor *accessor
	oracle   introspect.ProcessOracle
	state    introspect.StateLayer
	faults   uint64
	cur      introspect.DTB
}

// New wires a Core from its collaborators. state may be nil; every
// StateLayer method then returns a "state layer not configured" error
// in its place, since breakpoint/pause/enumeration are
// declared-only, external-collaborator contracts the core never
// implements itself (§1).
func New(t introspect.Transport, oracle introspect.ProcessOracle, state introspect.StateLayer, logger introspect.Logger) introspect.Core {
	if logger == nil {
		logger = introspect.NopLogger
	}
	c := &core{t: t, oracle: oracle, state: state}
	w := newWalker(t)
	p := newPolicy(t, oracle, &c.faults, logger)
	c.accessor = newAccessor(t, w, p)
	return c
}

func (c *core) Close() error {
	return c.t.Close()
}

func (c *core) FaultCount() uint64 {
	return c.faults
}

func (c *core) VirtualToPhysical(ctx context.Context, proc *introspect.Process, dtb introspect.DTB, vaddr introspect.VirtAddr) (uint64, bool, error) {
	p, have := derefProc(proc)
	return c.accessor.virtualToPhysical(ctx, p, have, dtb, vaddr)
}

// Read splits [vaddr, vaddr+len(dst)) into accessor.readPage calls at
// PageSize boundaries, per the size contract of §4.E. It is
// all-or-nothing: a failing page anywhere in the range fails the
// whole call, with no partial fill left visible in dst.
func (c *core) Read(ctx context.Context, proc *introspect.Process, dtb introspect.DTB, dst []byte, vaddr introspect.VirtAddr) (bool, error) {
	p, have := derefProc(proc)
	var page [introspect.PageSize]byte
	out := make([]byte, len(dst))
	remaining := out
	addr := vaddr
	for len(remaining) > 0 {
		off := addr.Offset()
		n := min(len(remaining), introspect.PageSize-int(off))
		ok, err := c.accessor.readPage(ctx, p, have, dtb, page[:], addr.Page())
		if err != nil || !ok {
			return false, err
		}
		copy(remaining[:n], page[off:int(off)+n])
		remaining = remaining[n:]
		addr = introspect.VirtAddr(uint64(addr) + uint64(n))
	}
	copy(dst, out)
	return true, nil
}

// Write is Read's counterpart, read-modify-writing every partially
// covered boundary page so bytes outside of src are preserved.
func (c *core) Write(ctx context.Context, proc *introspect.Process, dtb introspect.DTB, vaddr introspect.VirtAddr, src []byte) (bool, error) {
	p, have := derefProc(proc)
	var page [introspect.PageSize]byte
	remaining := src
	addr := vaddr
	for len(remaining) > 0 {
		off := addr.Offset()
		n := min(len(remaining), introspect.PageSize-int(off))
		whole := off == 0 && n == introspect.PageSize
		if !whole {
			ok, err := c.accessor.readPage(ctx, p, have, dtb, page[:], addr.Page())
			if err != nil || !ok {
				return false, err
			}
		}
		copy(page[off:int(off)+n], remaining[:n])
		ok, err := c.accessor.writePage(ctx, p, have, dtb, addr.Page(), page[:])
		if err != nil || !ok {
			return false, err
		}
		remaining = remaining[n:]
		addr = introspect.VirtAddr(uint64(addr) + uint64(n))
	}
	return true, nil
}

func (c *core) SwitchProcess(proc introspect.Process) (introspect.ProcessScope, error) {
	return newScope(c, proc), nil
}

func (c *core) Pause() error  { return c.requireState().Pause() }
func (c *core) Resume() error { return c.requireState().Resume() }
func (c *core) Wait() error   { return c.requireState().Wait() }

func (c *core) AddBreakpoint(addr uint64) (introspect.Breakpoint, error) {
	return c.requireState().AddBreakpoint(addr)
}

func (c *core) Processes() ([]introspect.Process, error) {
	return c.requireState().Processes()
}

func (c *core) FindProcess(name string) (introspect.Process, error) {
	return c.requireState().FindProcess(name)
}

func (c *core) Modules(proc introspect.Process) ([]introspect.Module, error) {
	return c.requireState().Modules(proc)
}

func (c *core) requireState() introspect.StateLayer {
	if c.state == nil {
		return missingStateLayer{}
	}
	return c.state
}

func derefProc(proc *introspect.Process) (introspect.Process, bool) {
	if proc == nil {
		return introspect.Process{}, false
	}
	return *proc, true
}

// missingStateLayer backs every StateLayer method when core was
// constructed without one, so an introvm session built against a
// transport-only test harness never nil-derefs.
type missingStateLayer struct{}

func (missingStateLayer) Pause() error  { return fmt.Errorf("introspect: state layer not configured") }
func (missingStateLayer) Resume() error { return fmt.Errorf("introspect: state layer not configured") }
func (missingStateLayer) Wait() error   { return fmt.Errorf("introspect: state layer not configured") }

func (missingStateLayer) AddBreakpoint(uint64) (introspect.Breakpoint, error) {
	return nil, fmt.Errorf("introspect: state layer not configured")
}

func (missingStateLayer) Processes() ([]introspect.Process, error) {
	return nil, fmt.Errorf("introspect: state layer not configured")
}

func (missingStateLayer) FindProcess(string) (introspect.Process, error) {
	return introspect.Process{}, fmt.Errorf("introspect: state layer not configured")
}

func (missingStateLayer) Modules(introspect.Process) ([]introspect.Module, error) {
	return nil, fmt.Errorf("introspect: state layer not configured")
}
