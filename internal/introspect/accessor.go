package introspect

import (
	"context"
	"fmt"

	"github.com/wnxd/ntintrospect/introspect"
)

// accessor is component E: the public read_page/write_page/
// virtual_to_physical orchestration, implemented against a walker,
// a policy and the raw Transport. It does not itself know about
// Process scoping or the StateLayer; core.go wires those around it.
type accessor struct {
	t      introspect.Transport
	walk   *walker
	policy *policy
}

func newAccessor(t introspect.Transport, w *walker, p *policy) *accessor {
	return &accessor{t: t, walk: w, policy: p}
}

// virtualToPhysical walks vaddr; on fault-required it attempts one
// injection and re-walks. It never falls back to a virtualised
// transport read — there is no physical address to report without a
// successful walk (§4.E).
func (a *accessor) virtualToPhysical(ctx context.Context, proc introspect.Process, haveProc bool, dtb introspect.DTB, vaddr introspect.VirtAddr) (uint64, bool, error) {
	res, err := a.walk.walk(ctx, dtb, vaddr)
	if err != nil {
		return 0, false, err
	}
	if res.Resolved {
		return res.Phys, true, nil
	}
	if res.ResolvedZero {
		return 0, false, fmt.Errorf("virtualToPhysical: %w: zero-page branch is unreachable", introspect.ErrTranslationUnavailable)
	}

	injected, err := a.policy.tryInject(ctx, proc, haveProc, dtb, vaddr)
	if err != nil || !injected {
		return 0, false, translationErr(err)
	}

	res, err = a.walk.walk(ctx, dtb, vaddr)
	if err != nil {
		return 0, false, err
	}
	if !res.Resolved {
		return 0, false, fmt.Errorf("virtualToPhysical: %w: still unresolved after injection", introspect.ErrTranslationUnavailable)
	}
	return res.Phys, true, nil
}

// readPage reads exactly PageSize bytes starting at vaddr.Page(). dst
// must be PageSize long; a shorter or longer dst is a caller error,
// not something this accessor splits for you (§4.E size contract).
func (a *accessor) readPage(ctx context.Context, proc introspect.Process, haveProc bool, dtb introspect.DTB, dst []byte, vaddr introspect.VirtAddr) (bool, error) {
	if len(dst) != introspect.PageSize {
		return false, fmt.Errorf("readPage: dst must be exactly %d bytes", introspect.PageSize)
	}
	page := vaddr.Page()
	res, err := a.walk.walk(ctx, dtb, page)
	if err != nil {
		return false, err
	}
	if res.Resolved {
		ok, err := a.t.ReadPhysical(ctx, dst, res.Phys)
		if err != nil {
			return false, fmt.Errorf("readPage: %w", err)
		}
		return ok, nil
	}
	if res.ResolvedZero {
		clear(dst)
		return true, nil
	}

	// The policy's predicates (kernel-half check, VMA coverage, CR2)
	// operate on the actual faulting address, not the page-aligned one
	// the walk above used — a fault injected for the page's first byte
	// would report the wrong CR2 and could pass a VMA-coverage check
	// that the true address fails.
	injected, err := a.policy.tryInject(ctx, proc, haveProc, dtb, vaddr)
	if err != nil || !injected {
		return false, translationErr(err)
	}
	ok, err := a.t.ReadVirtualWithDTB(ctx, dtb, dst, uint64(page))
	if err != nil {
		return false, fmt.Errorf("readPage: %w", err)
	}
	return ok, nil
}

// writePage is readPage's symmetric counterpart. There is no
// zero-page shortcut on write (§4.E).
func (a *accessor) writePage(ctx context.Context, proc introspect.Process, haveProc bool, dtb introspect.DTB, vaddr introspect.VirtAddr, src []byte) (bool, error) {
	if len(src) != introspect.PageSize {
		return false, fmt.Errorf("writePage: src must be exactly %d bytes", introspect.PageSize)
	}
	page := vaddr.Page()
	res, err := a.walk.walk(ctx, dtb, page)
	if err != nil {
		return false, err
	}
	if res.Resolved {
		ok, err := a.t.WritePhysical(ctx, res.Phys, src)
		if err != nil {
			return false, fmt.Errorf("writePage: %w", err)
		}
		return ok, nil
	}

	injected, err := a.policy.tryInject(ctx, proc, haveProc, dtb, vaddr)
	if err != nil || !injected {
		return false, translationErr(err)
	}
	ok, err := a.t.WriteVirtualWithDTB(ctx, dtb, uint64(page), src)
	if err != nil {
		return false, fmt.Errorf("writePage: %w", err)
	}
	return ok, nil
}

// translationErr normalizes a nil policy error (predicate simply
// failed with injected==false and no error) into ErrTranslationUnavailable,
// while preserving a non-nil policy error's wrapped kind (PolicyDenied,
// InjectionFailed, …) for errors.Is callers further up.
func translationErr(err error) error {
	if err != nil {
		return err
	}
	return introspect.ErrTranslationUnavailable
}
