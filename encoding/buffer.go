package encoding

import (
	"encoding/binary"
	"io"
	"math"
)

// bufferStream is a Stream backed by a flat in-memory byte slice,
// adapted from the register/stack-backed Stream implementations the
// architecture backends use for calling-convention marshaling: the
// same Stream contract, but reading and writing sequentially out of
// one buffer instead of registers plus a stack. Sub-streams opened by
// ReadStream/WriteStream are nested bufferStreams over slices of the
// same backing array, exactly as a stack-backed implementation would
// hand back a further stack-offset view.
type bufferStream struct {
	buf []byte
	off int
	bs  int
}

// NewBufferStream wraps buf for use with Encode/Decode. blockSize
// governs the padding decode/encode apply to bare int/uint/uintptr
// fields; callers that stick to fixed-width integer types (uint8/16/
// 32/64, fixed-size byte arrays) are unaffected by its choice.
func NewBufferStream(buf []byte, blockSize int) Stream {
	return &bufferStream{buf: buf, bs: blockSize}
}

func (s *bufferStream) BlockSize() int { return s.bs }
func (s *bufferStream) Offset() uint64 { return uint64(s.off) }

// Skip advances the offset by n. Skipping past the end extends the
// buffer with zero bytes, the same way Write grows it, so padding the
// encoder skips over is part of the encoded output.
func (s *bufferStream) Skip(n int) error {
	if end := s.off + n; end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	s.off += n
	return nil
}

func (s *bufferStream) Read(b []byte) (int, error) {
	if s.off >= len(s.buf) {
		return 0, io.EOF
	}
	n := copy(b, s.buf[s.off:])
	s.off += n
	if n < len(b) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (s *bufferStream) ReadFloat() (float32, error) {
	var b [4]byte
	if _, err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b[:])), nil
}

func (s *bufferStream) ReadDouble() (float64, error) {
	var b [8]byte
	if _, err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}

func (s *bufferStream) ReadString() (string, error) {
	var lenb [4]byte
	if _, err := s.Read(lenb[:]); err != nil {
		return "", err
	}
	n := int(binary.LittleEndian.Uint32(lenb[:]))
	b := make([]byte, n)
	if _, err := s.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *bufferStream) ReadStream() (Stream, error) {
	if s.off >= len(s.buf) {
		return &bufferStream{bs: s.bs}, nil
	}
	sub := &bufferStream{buf: s.buf[s.off:], bs: s.bs}
	s.off = len(s.buf)
	return sub, nil
}

func (s *bufferStream) Write(b []byte) (int, error) {
	if end := s.off + len(b); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.off:], b)
	s.off += n
	return n, nil
}

func (s *bufferStream) WriteFloat(f float32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
	_, err := s.Write(b[:])
	return err
}

func (s *bufferStream) WriteDouble(d float64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(d))
	_, err := s.Write(b[:])
	return err
}

func (s *bufferStream) WriteString(str string) error {
	var lenb [4]byte
	binary.LittleEndian.PutUint32(lenb[:], uint32(len(str)))
	if _, err := s.Write(lenb[:]); err != nil {
		return err
	}
	_, err := s.Write([]byte(str))
	return err
}

func (s *bufferStream) WriteStream(hint int) (Stream, error) {
	sub := &bufferStream{buf: make([]byte, 0, hint), bs: s.bs}
	return sub, nil
}

// Bytes returns the stream's backing buffer as written so far. The
// wire protocol in package transport and introspect.WriteValue read
// the encoded bytes of their top-level stream this way.
func (s *bufferStream) Bytes() []byte { return s.buf[:s.off] }
