package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wnxd/ntintrospect/introspect"
	"github.com/wnxd/ntintrospect/socket"
)

type socketNetwork int

const (
	networkTCP socketNetwork = iota
	networkUnix
)

func dialSocket(n socketNetwork) DialFunc {
	return func(ctx context.Context, addr string, cfg introspect.Config) (introspect.Transport, error) {
		network := socket.TCP
		if n == networkUnix {
			network = socket.Unix
		}
		s := socket.New(network)
		if err := s.Connect(addr); err != nil {
			return nil, fmt.Errorf("transport: connect %s %s: %w", network, addr, err)
		}
		return &client{conn: s, cpu: cfg.CPUID, timeout: cfg.RequestTimeout}, nil
	}
}

// client is the reference introspect.Transport: every method frames
// one request, writes it, and blocks for the matching response.
// roundTrip holds a mutex for one request/response exchange, so two
// calls never interleave on the wire; beyond that the client relies
// on the introspection core above it being single-threaded (§5), the
// way the emulator package's Pointer type trusts its caller to
// serialize emulator access.
type client struct {
	mu      sync.Mutex
	conn    socket.Socket
	cpu     uint32
	timeout time.Duration
}

func (c *client) Close() error {
	return c.conn.Close()
}

func (c *client) roundTrip(ctx context.Context, req envelope, payload []byte) (envelope, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req.CPU = c.cpu
	req.PayloadLen = uint32(len(payload))
	if err := writeEnvelope(c.conn, &req); err != nil {
		return envelope{}, nil, err
	}
	if len(payload) > 0 {
		if err := writePayload(c.conn, payload); err != nil {
			return envelope{}, nil, fmt.Errorf("transport: write payload: %w", err)
		}
	}

	resp, err := readEnvelope(c.conn)
	if err != nil {
		return envelope{}, nil, err
	}
	var respPayload []byte
	if resp.PayloadLen > 0 {
		respPayload, err = readPayload(c.conn, resp.PayloadLen)
		if err != nil {
			return envelope{}, nil, err
		}
	}
	return resp, respPayload, nil
}

func (c *client) ReadPhysical(ctx context.Context, dst []byte, phys uint64) (bool, error) {
	resp, payload, err := c.roundTrip(ctx, envelope{Op: uint8(opReadPhysical), Phys: phys, Value: uint64(len(dst))}, nil)
	if err != nil {
		return false, err
	}
	if resp.OK != 0 {
		copy(dst, payload)
	}
	return resp.OK != 0, nil
}

func (c *client) WritePhysical(ctx context.Context, phys uint64, src []byte) (bool, error) {
	resp, _, err := c.roundTrip(ctx, envelope{Op: uint8(opWritePhysical), Phys: phys}, src)
	if err != nil {
		return false, err
	}
	return resp.OK != 0, nil
}

func (c *client) ReadVirtualWithDTB(ctx context.Context, dtb introspect.DTB, dst []byte, vaddr uint64) (bool, error) {
	resp, payload, err := c.roundTrip(ctx, envelope{Op: uint8(opReadVirtual), DTB: uint64(dtb), Addr: vaddr, Value: uint64(len(dst))}, nil)
	if err != nil {
		return false, err
	}
	if resp.OK != 0 {
		copy(dst, payload)
	}
	return resp.OK != 0, nil
}

func (c *client) WriteVirtualWithDTB(ctx context.Context, dtb introspect.DTB, vaddr uint64, src []byte) (bool, error) {
	resp, _, err := c.roundTrip(ctx, envelope{Op: uint8(opWriteVirtual), DTB: uint64(dtb), Addr: vaddr}, src)
	if err != nil {
		return false, err
	}
	return resp.OK != 0, nil
}

func (c *client) RegisterRead(ctx context.Context, reg introspect.Reg) (uint64, error) {
	resp, _, err := c.roundTrip(ctx, envelope{Op: uint8(opRegisterRead), Reg: uint8(reg)}, nil)
	if err != nil {
		return 0, err
	}
	if resp.OK == 0 {
		return 0, fmt.Errorf("transport: register read: %w", introspect.ErrTransportFailure)
	}
	return resp.Value, nil
}

func (c *client) InjectInterrupt(ctx context.Context, vector uint8, errorCode uint64, cr2 uint64) (bool, error) {
	resp, _, err := c.roundTrip(ctx, envelope{Op: uint8(opInjectInterrupt), Vector: vector, ErrorCode: errorCode, CR2: cr2}, nil)
	if err != nil {
		return false, err
	}
	return resp.OK != 0, nil
}

func (c *client) RunToCurrent(ctx context.Context, reasonTag string) error {
	resp, _, err := c.roundTrip(ctx, envelope{Op: uint8(opRunToCurrent)}, []byte(reasonTag))
	if err != nil {
		return err
	}
	if resp.OK == 0 {
		return fmt.Errorf("transport: run_to_current: %w", introspect.ErrTransportFailure)
	}
	return nil
}
