package introspect

import (
	"context"
	"fmt"

	"github.com/wnxd/ntintrospect/introspect"
)

const pageFaultVector uint8 = 14

// policy implements the six ordered predicates of §4.D and performs
// the injection itself once every predicate holds. It owns no state
// of its own beyond the fault counter, which the owning core passes in
// by reference so there is one counter per Core, shared by every
// ProcessScope derived from it (§9 re-architecture guidance: move num_page_faults
// onto the accessor instance, not a process-global).
type policy struct {
	t      introspect.Transport
	oracle introspect.ProcessOracle
	faults *uint64
	logger introspect.Logger
}

func newPolicy(t introspect.Transport, oracle introspect.ProcessOracle, faults *uint64, logger introspect.Logger) *policy {
	return &policy{t: t, oracle: oracle, faults: faults, logger: logger}
}

// tryInject answers whether a synthetic #PF may be raised for addr
// right now and, if so, raises it. proc is consulted only when
// haveProc is true; haveProc==false fails predicate 2 unconditionally — the "raw DTB, no
// process" branch the spec calls out as dead is preserved by simply
// never taking it, per §9's open-question guidance.
func (p *policy) tryInject(ctx context.Context, proc introspect.Process, haveProc bool, dtb introspect.DTB, addr introspect.VirtAddr) (bool, error) {
	if addr.IsKernelHalf() {
		return false, fmt.Errorf("tryInject: %w: kernel address", introspect.ErrPolicyDenied)
	}
	if !haveProc {
		return false, fmt.Errorf("tryInject: %w: no process context", introspect.ErrPolicyDenied)
	}

	irql, err := p.readIRQL(ctx)
	if err != nil {
		return false, err
	}
	if !irql.BelowDispatch() {
		return false, fmt.Errorf("tryInject: %w: irql %d not below dispatch", introspect.ErrPolicyDenied, irql)
	}

	cr3, err := p.t.RegisterRead(ctx, introspect.RegCR3)
	if err != nil {
		return false, fmt.Errorf("tryInject: read cr3: %w", err)
	}
	if !proc.DTBs.Matches(introspect.DTB(cr3)) {
		return false, fmt.Errorf("tryInject: %w: cr3 does not match process", introspect.ErrPolicyDenied)
	}

	vma, ok := p.oracle.VMAFind(proc, uint64(addr))
	if !ok {
		return false, fmt.Errorf("tryInject: %w", introspect.ErrOracleMissWrapped)
	}
	if !vma.Contains(uint64(addr)) {
		return false, fmt.Errorf("tryInject: %w: page extends past vma", introspect.ErrPolicyDenied)
	}

	return p.inject(ctx, addr)
}

func (p *policy) readIRQL(ctx context.Context) (introspect.IRQL, error) {
	cr8, err := p.t.RegisterRead(ctx, introspect.RegCR8)
	if err != nil {
		return 0, fmt.Errorf("tryInject: read cr8: %w", err)
	}
	return introspect.IRQL(cr8), nil
}

// inject is reached only once every predicate has held. Per invariant
// 5 the counter increments exactly once here, before the primitive is
// even called, so a failing primitive still counts the attempt.
func (p *policy) inject(ctx context.Context, addr introspect.VirtAddr) (bool, error) {
	cs, err := p.t.RegisterRead(ctx, introspect.RegCS)
	if err != nil {
		return false, fmt.Errorf("tryInject: read cs: %w", err)
	}
	var errorCode uint64
	if introspect.IsUserMode(cs) {
		errorCode = 0b100
	}

	*p.faults++

	ok, err := p.t.InjectInterrupt(ctx, pageFaultVector, errorCode, uint64(addr))
	if err != nil {
		return false, fmt.Errorf("tryInject: %w", err)
	}
	if !ok {
		p.logger.Errorf("introspect: inject_interrupt refused at %#x", uint64(addr))
		return false, fmt.Errorf("tryInject: %w", introspect.ErrInjectionFailed)
	}

	if err := p.t.RunToCurrent(ctx, "page-fault-injection"); err != nil {
		return false, fmt.Errorf("tryInject: run_to_current: %w", err)
	}
	return true, nil
}
