package introspect

import "io"

// StateLayer is the out-of-core collaborator that owns breakpoints,
// VM pause/resume/wait, and process/module enumeration (§1's "state
// layer" and "process and module enumeration layer"). This package
// declares the contract the Core facade forwards to; it implements
// none of it, the same way the debugger package this core was adapted
// from declares HookManger/TaskManager/ModuleManager as interfaces its
// architecture backends implement, not the package itself.
type StateLayer interface {
	Pause() error
	Resume() error
	Wait() error

	AddBreakpoint(addr uint64) (Breakpoint, error)

	Processes() ([]Process, error)
	FindProcess(name string) (Process, error)
	Modules(proc Process) ([]Module, error)
}

// Breakpoint is a live breakpoint handle; Close removes it.
type Breakpoint interface {
	io.Closer
	Addr() uint64
}

// Module is a loaded guest module descriptor, as surfaced by the
// state layer's enumeration passthrough.
type Module struct {
	Name      string
	BaseAddr  uint64
	Size      uint64
	EntryAddr uint64
}
