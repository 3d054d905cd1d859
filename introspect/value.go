package introspect

import (
	"context"
	"fmt"

	"github.com/wnxd/ntintrospect/encoding"
)

// valueBlockSize is the block size the struct codec uses for
// ReadValue/WriteValue. Values passed to these helpers are expected
// to stick to fixed-width integer fields and fixed-size byte arrays,
// which the codec treats identically regardless of block size.
const valueBlockSize = 8

// ReadValue decodes a fixed-layout value of type T out of the page(s)
// covering vaddr, going through Core.Read the same way any other
// caller would. Interface methods cannot be generic in Go, so this is
// a free function over the Core contract rather than a Core method —
// the teacher's MemExtract convenience layer, generalized.
func ReadValue[T any](ctx context.Context, c Core, proc *Process, dtb DTB, vaddr VirtAddr) (T, bool, error) {
	var val T
	size := encoding.DecodeSize(valueBlockSize, &val)
	buf := make([]byte, size)
	ok, err := c.Read(ctx, proc, dtb, buf, vaddr)
	if err != nil || !ok {
		return val, false, err
	}
	stream := encoding.NewBufferStream(buf, valueBlockSize)
	if err := encoding.Decode(stream, &val); err != nil {
		return val, false, fmt.Errorf("ReadValue: %w", err)
	}
	return val, true, nil
}

// WriteValue is ReadValue's counterpart: encode val and write it out
// through Core.Write.
func WriteValue[T any](ctx context.Context, c Core, proc *Process, dtb DTB, vaddr VirtAddr, val T) (bool, error) {
	size := encoding.EncodeSize(valueBlockSize, val)
	buf := make([]byte, 0, size)
	stream := encoding.NewBufferStream(buf, valueBlockSize)
	if err := encoding.Encode(stream, val); err != nil {
		return false, fmt.Errorf("WriteValue: %w", err)
	}
	encoded := stream.(interface{ Bytes() []byte }).Bytes()
	return c.Write(ctx, proc, dtb, vaddr, encoded)
}
