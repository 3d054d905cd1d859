package transport

import (
	"context"
	"fmt"

	"github.com/wnxd/ntintrospect/introspect"
)

// DialFunc opens a Transport against addr (the part of a DialTarget
// after its scheme). Adapted from the debugger package's
// arch.go Register/dbgMap pattern: there a emulator.Arch value picks
// a Debugger constructor, here a URL-style scheme picks a DialFunc.
type DialFunc func(ctx context.Context, addr string, cfg introspect.Config) (introspect.Transport, error)

var dialMap = make(map[string]DialFunc)

// Register associates scheme with fn. Returns false if scheme is
// already registered, mirroring debugger.Register's refusal to
// silently overwrite an existing architecture constructor.
func Register(scheme string, fn DialFunc) bool {
	if _, ok := dialMap[scheme]; ok {
		return false
	}
	dialMap[scheme] = fn
	return true
}

func init() {
	Register("tcp", dialSocket(networkTCP))
	Register("unix", dialSocket(networkUnix))
}

// Dial parses target as "scheme:addr" and dispatches to the
// registered DialFunc for scheme. This is the function the reference
// CLI harness uses to turn a Config.DialTarget into a live Transport.
func Dial(ctx context.Context, target string, cfg introspect.Config) (introspect.Transport, error) {
	scheme, addr, ok := splitTarget(target)
	if !ok {
		return nil, fmt.Errorf("transport: dial target %q has no scheme", target)
	}
	fn, ok := dialMap[scheme]
	if !ok {
		return nil, fmt.Errorf("transport: no transport registered for scheme %q", scheme)
	}
	return fn(ctx, addr, cfg)
}

func splitTarget(target string) (scheme, addr string, ok bool) {
	for i := 0; i < len(target); i++ {
		if target[i] == ':' {
			return target[:i], target[i+1:], true
		}
	}
	return "", "", false
}
