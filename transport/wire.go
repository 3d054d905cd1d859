// Package transport implements introspect.Transport against a small
// request/response protocol framed over a net.Conn obtained from this
// repository's socket package, plus a scriptable in-memory transport
// used by tests and by internal/introspect's own test suite.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wnxd/ntintrospect/encoding"
)

type opCode uint8

const (
	opReadPhysical opCode = iota
	opWritePhysical
	opReadVirtual
	opWriteVirtual
	opRegisterRead
	opInjectInterrupt
	opRunToCurrent
)

// envelope is the fixed-width header every request and response
// carries. Not every field applies to every op; unused fields are
// zero. Payload bytes (page data, the run-to-current reason tag)
// follow the envelope as a separately length-prefixed blob, named by
// PayloadLen, rather than folded into the struct codec — the codec's
// variable-length String/Slice support exists but this protocol keeps
// its envelope homogeneous and leaves payload framing to plain
// encoding/binary, matching the fixed-width-only wire convention used
// throughout this package.
type envelope struct {
	Op         uint8
	OK         uint8
	_          [2]uint8
	CPU        uint32
	Phys       uint64
	DTB        uint64
	Addr       uint64
	Reg        uint8
	Vector     uint8
	_          [2]uint8
	ErrorCode  uint64
	CR2        uint64
	Value      uint64
	PayloadLen uint32
}

const envelopeBlockSize = 8

func writeEnvelope(w io.Writer, e *envelope) error {
	buf := make([]byte, 0, 64)
	stream := encoding.NewBufferStream(buf, envelopeBlockSize)
	if err := encoding.Encode(stream, *e); err != nil {
		return fmt.Errorf("transport: encode envelope: %w", err)
	}
	body := stream.(interface{ Bytes() []byte }).Bytes()
	var lenb [4]byte
	binary.LittleEndian.PutUint32(lenb[:], uint32(len(body)))
	if _, err := w.Write(lenb[:]); err != nil {
		return fmt.Errorf("transport: write envelope length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("transport: write envelope: %w", err)
	}
	return nil
}

func readEnvelope(r io.Reader) (envelope, error) {
	var lenb [4]byte
	if _, err := io.ReadFull(r, lenb[:]); err != nil {
		return envelope{}, fmt.Errorf("transport: read envelope length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenb[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return envelope{}, fmt.Errorf("transport: read envelope: %w", err)
	}
	var e envelope
	stream := encoding.NewBufferStream(body, envelopeBlockSize)
	if err := encoding.Decode(stream, &e); err != nil {
		return envelope{}, fmt.Errorf("transport: decode envelope: %w", err)
	}
	return e, nil
}

func writePayload(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func readPayload(r io.Reader, n uint32) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("transport: read payload: %w", err)
	}
	return b, nil
}
