package introspect

import "github.com/wnxd/ntintrospect/introspect"

// scope is the handle introspect.Core.SwitchProcess returns: a
// binding of one Process (and its user-mode DTB) that callers can
// carry around instead of re-specifying dtb on every accessor call.
// Closing it — success or failure — restores whatever DTB was bound
// before the switch, per §9's scoped-process-switch guidance; the
// source's destructor semantics become an io.Closer here, the same
// substitution the teacher's own context/task handles make for RAII
// patterns that don't exist in Go.
type scope struct {
	c    *core
	proc introspect.Process
	prev introspect.DTB
}

func newScope(c *core, proc introspect.Process) *scope {
	prev := c.cur
	c.cur = proc.DTBs.User
	return &scope{c: c, proc: proc, prev: prev}
}

func (s *scope) Process() introspect.Process { return s.proc }
func (s *scope) DTB() introspect.DTB         { return s.c.cur }

// Close restores the core's previously bound DTB unconditionally; it
// never fails, since restoring a field assignment cannot fail, but
// keeps the io.Closer signature for parity with every other scoped
// handle in this codebase.
func (s *scope) Close() error {
	s.c.cur = s.prev
	return nil
}
