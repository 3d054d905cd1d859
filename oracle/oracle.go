// Package oracle provides a minimal in-memory introspect.ProcessOracle:
// a flat, sorted VMA list per process, with no persistence and no
// connection to a live guest. It exists for tests and the reference
// CLI harness; production callers back introspect.ProcessOracle with
// real NT _EPROCESS/VAD walks instead.
package oracle

import (
	"sort"
	"sync"

	"github.com/wnxd/ntintrospect/introspect"
)

type Oracle struct {
	mu   sync.RWMutex
	vmas map[uintptr][]introspect.VMA
}

func New() *Oracle {
	return &Oracle{vmas: make(map[uintptr][]introspect.VMA)}
}

// AddVMA registers vma as belonging to proc, keeping the per-process
// list sorted by address so VMAFind can binary-search it.
func (o *Oracle) AddVMA(proc introspect.Process, vma introspect.VMA) {
	o.mu.Lock()
	defer o.mu.Unlock()
	list := o.vmas[proc.Handle]
	i := sort.Search(len(list), func(i int) bool { return list[i].Addr >= vma.Addr })
	list = append(list, introspect.VMA{})
	copy(list[i+1:], list[i:])
	list[i] = vma
	o.vmas[proc.Handle] = list
}

// VMAFind returns the last VMA whose start address is <= addr, if
// addr actually falls within it.
func (o *Oracle) VMAFind(proc introspect.Process, addr uint64) (introspect.VMA, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	list := o.vmas[proc.Handle]
	i := sort.Search(len(list), func(i int) bool { return list[i].Addr > addr })
	if i == 0 {
		return introspect.VMA{}, false
	}
	vma := list[i-1]
	if addr < vma.Addr || addr >= vma.Addr+vma.Size {
		return introspect.VMA{}, false
	}
	return vma, true
}

// VMASpan returns vma unchanged: this implementation's VMAs are
// self-describing, so there is nothing fresher to re-derive.
func (o *Oracle) VMASpan(proc introspect.Process, vma introspect.VMA) (introspect.VMA, bool) {
	return vma, true
}

func (o *Oracle) IsUserMode(cs uint64) bool {
	return introspect.IsUserMode(cs)
}
