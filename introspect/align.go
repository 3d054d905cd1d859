package introspect

import "golang.org/x/exp/constraints"

// Align rounds a up to the next multiple of b, b a power of two. Kept
// from the debugger package's stack-alignment helper; here it aligns
// virtual addresses and sizes to PageSize instead of a calling
// convention's stack width.
func Align[I constraints.Integer](a, b I) I {
	return (a + b - 1) &^ (b - 1)
}
