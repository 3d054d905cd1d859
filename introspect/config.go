package introspect

import "time"

// Logger is the minimal leveled-writer this core logs through. No
// third-party logging library is used anywhere in the example
// corpus this project draws on — every repository that logs at all
// reaches for the standard library's log package — so this interface
// is deliberately small enough to be trivially backed by one, while
// still letting an embedding CLI redirect diagnostics into its own
// sink. A nil Logger is valid and discards everything.
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Errorf(string, ...any) {}

// NopLogger discards everything; it is the Core default.
var NopLogger Logger = nopLogger{}

// Config carries the session-level knobs the reference transport's
// Dial consumes. The Core constructor does not take a Config; it is
// handed the Transport and Logger directly.
type Config struct {
	// CPUID is the VCPU this session addresses. Fixed at 0 for every
	// call this design makes; carried here so a future multi-VCPU
	// extension has a place to live without changing call sites.
	CPUID uint32

	// DialTarget names the hypervisor channel to open — a UTF-8
	// shared-memory identifier per §6. The reference transport
	// interprets it as a socket dial address.
	DialTarget string

	// RequestTimeout is stored by the reference transport's client but
	// not enforced: no dial, round trip or RunToCurrent is cut short by
	// it, and RunToCurrent blocks for as long as the injected handler
	// takes to run in the guest (§5).
	RequestTimeout time.Duration

	Logger Logger
}

func (c Config) logger() Logger {
	if c.Logger == nil {
		return NopLogger
	}
	return c.Logger
}
