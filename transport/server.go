package transport

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/wnxd/ntintrospect/introspect"
	"github.com/wnxd/ntintrospect/socket"
)

// GuestBackend is what Server dispatches wire requests against. It is
// the server-side mirror of introspect.Transport, taking the already
// length-bounded payload a request carried instead of a Go []byte the
// caller owns, and reporting ok/error the same way Transport does.
type GuestBackend interface {
	ReadPhysical(dst []byte, phys uint64) (bool, error)
	WritePhysical(phys uint64, src []byte) (bool, error)
	ReadVirtualWithDTB(dtb introspect.DTB, dst []byte, vaddr uint64) (bool, error)
	WriteVirtualWithDTB(dtb introspect.DTB, vaddr uint64, src []byte) (bool, error)
	RegisterRead(cpu uint32, reg introspect.Reg) (uint64, error)
	InjectInterrupt(cpu uint32, vector uint8, errorCode uint64, cr2 uint64) (bool, error)
	RunToCurrent(cpu uint32, reasonTag string) error
}

// Server accepts connections on a socket.Socket bound and listening
// already, and serves every accepted connection against one
// GuestBackend, logging with the same Logger contract Core uses.
// Intended for the reference CLI harness and for tests standing in
// for a real hypervisor channel.
type Server struct {
	backend GuestBackend
	logger  introspect.Logger
}

func NewServer(backend GuestBackend, logger introspect.Logger) *Server {
	if logger == nil {
		logger = introspect.NopLogger
	}
	return &Server{backend: backend, logger: logger}
}

// Serve accepts connections from l until it returns an error, serving
// each one on its own goroutine. Returns when Accept fails, typically
// because l was closed.
func (s *Server) Serve(l socket.Server) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn socket.Conn) {
	defer conn.Close()
	for {
		req, err := readEnvelope(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Errorf("transport: server read: %v", err)
			}
			return
		}
		var reqPayload []byte
		if req.PayloadLen > 0 {
			reqPayload, err = readPayload(conn, req.PayloadLen)
			if err != nil {
				s.logger.Errorf("transport: server read payload: %v", err)
				return
			}
		}
		resp, respPayload, err := s.dispatch(req, reqPayload)
		if err != nil {
			s.logger.Errorf("transport: server dispatch: %v", err)
			resp = envelope{Op: req.Op, OK: 0}
		}
		resp.PayloadLen = uint32(len(respPayload))
		if err := writeEnvelope(conn, &resp); err != nil {
			s.logger.Errorf("transport: server write: %v", err)
			return
		}
		if len(respPayload) > 0 {
			if err := writePayload(conn, respPayload); err != nil {
				s.logger.Errorf("transport: server write payload: %v", err)
				return
			}
		}
	}
}

func (s *Server) dispatch(req envelope, payload []byte) (envelope, []byte, error) {
	resp := envelope{Op: req.Op}
	switch opCode(req.Op) {
	case opReadPhysical:
		dst := make([]byte, req.Value)
		ok, err := s.backend.ReadPhysical(dst, req.Phys)
		resp.OK = boolByte(ok)
		if err != nil {
			return resp, nil, err
		}
		if ok {
			return resp, dst, nil
		}
		return resp, nil, nil
	case opWritePhysical:
		ok, err := s.backend.WritePhysical(req.Phys, payload)
		resp.OK = boolByte(ok)
		return resp, nil, err
	case opReadVirtual:
		dst := make([]byte, req.Value)
		ok, err := s.backend.ReadVirtualWithDTB(introspect.DTB(req.DTB), dst, req.Addr)
		resp.OK = boolByte(ok)
		if err != nil {
			return resp, nil, err
		}
		if ok {
			return resp, dst, nil
		}
		return resp, nil, nil
	case opWriteVirtual:
		ok, err := s.backend.WriteVirtualWithDTB(introspect.DTB(req.DTB), req.Addr, payload)
		resp.OK = boolByte(ok)
		return resp, nil, err
	case opRegisterRead:
		val, err := s.backend.RegisterRead(req.CPU, introspect.Reg(req.Reg))
		if err != nil {
			return resp, nil, err
		}
		resp.OK = 1
		resp.Value = val
		return resp, nil, nil
	case opInjectInterrupt:
		ok, err := s.backend.InjectInterrupt(req.CPU, req.Vector, req.ErrorCode, req.CR2)
		resp.OK = boolByte(ok)
		return resp, nil, err
	case opRunToCurrent:
		err := s.backend.RunToCurrent(req.CPU, string(payload))
		resp.OK = boolByte(err == nil)
		if err != nil {
			return resp, nil, err
		}
		return resp, nil, nil
	default:
		return resp, nil, fmt.Errorf("transport: unknown op %d", req.Op)
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// StdLogger adapts the standard library's log.Logger to the
// introspect.Logger contract, per the corpus-wide convention of
// logging through the standard library rather than a third-party
// logger (§11.B).
type StdLogger struct {
	*log.Logger
}

func (l StdLogger) Debugf(format string, args ...any) { l.Printf("DEBUG "+format, args...) }
func (l StdLogger) Errorf(format string, args ...any) { l.Printf("ERROR "+format, args...) }
