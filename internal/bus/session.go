// Package bus owns the RS-485 Modbus session of a RAK13015 module.
//
// A Session is bound once to the serial port resolved from the module's slot
// and then serves blocking request/response exchanges. Each exchange is a
// single transmission followed by a poll loop bounded by the caller's timeout.
//
// A timed-out exchange has an unknown outcome: the slave may have answered
// just after the deadline or not at all. The session discards the abandoned
// exchange so a late answer never reaches a later caller's buffer; the master
// rejects new queries until the abandoned exchange has drained.
package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	modbusIface "github.com/tetragramaton/rak13015-go/internal/interface/modbus"
	"github.com/tetragramaton/rak13015-go/internal/slot"
)

const (
	// DefaultTimeout is the response timeout set when the session is bound.
	DefaultTimeout = 2000 * time.Millisecond
	// ResponseMargin is added to the caller's timeout for the master's own
	// response timeout, covering framing overhead.
	ResponseMargin = 1000 * time.Millisecond
)

var (
	ErrInvalidResource = errors.New("bus: invalid slot / base board selection")
	ErrNotInitialized  = errors.New("bus: session not initialized")
	ErrAlreadyBound    = errors.New("bus: session already bound to a transport")
	ErrNoTransport     = errors.New("bus: no serial port configured")
	ErrShortBuffer     = errors.New("bus: buffer shorter than element count")
	ErrZeroCount       = errors.New("bus: element count must be at least 1")
	ErrSend            = errors.New("bus: query not sent")
	ErrExchange        = errors.New("bus: exchange failed")
	ErrTimeout         = errors.New("bus: poll timeout")
)

// Ports maps a serial index to the device node carrying that UART.
type Ports map[int]string

// Session serializes all exchanges on one master.
type Session struct {
	mu     sync.Mutex
	master modbusIface.Master
	ports  Ports
	rs485  bool
	bound  bool
	closed bool
	port   string
}

type Option func(*Session)

// WithRS485 enables the kernel RS-485 mode on the bound transport.
func WithRS485(enabled bool) Option {
	return func(s *Session) { s.rs485 = enabled }
}

func NewSession(master modbusIface.Master, ports Ports, opts ...Option) *Session {
	s := &Session{master: master, ports: ports}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Initialize binds the session to the serial port of d at the given baud rate.
// An invalid descriptor fails without touching the transport.
func (s *Session) Initialize(d slot.Descriptor, baud int) error {
	if !d.Valid() {
		glog.V(1).Info("bus: invalid slot / base board selection")
		return ErrInvalidResource
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound || s.closed {
		return ErrAlreadyBound
	}
	path, ok := s.ports[d.Serial]
	if !ok || path == "" {
		return fmt.Errorf("%w: serial %d", ErrNoTransport, d.Serial)
	}

	err := s.master.Bind(modbusIface.Transport{
		Port:     path,
		BaudRate: baud,
		RS485:    s.rs485,
	})
	if err != nil {
		return fmt.Errorf("bus: bind serial %d: %w", d.Serial, err)
	}
	s.master.SetTimeout(DefaultTimeout)
	s.bound = true
	s.port = path
	glog.V(1).Infof("bus: bound serial %d (%s) at %d baud", d.Serial, path, baud)
	return nil
}

// Port returns the device node the session is bound to.
func (s *Session) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Request reads count holding registers starting at start from slave into buf.
func (s *Session) Request(slave byte, start, count uint16, buf []uint16, timeout time.Duration) error {
	return s.exchange(&modbusIface.Request{
		Slave:    slave,
		Function: modbusIface.ReadRegisters,
		Start:    start,
		Count:    count,
		Data:     buf,
	}, timeout)
}

// Write sets count coils starting at start on slave from buf. buf is not modified.
func (s *Session) Write(slave byte, start, count uint16, buf []uint16, timeout time.Duration) error {
	return s.exchange(&modbusIface.Request{
		Slave:    slave,
		Function: modbusIface.WriteMultipleCoils,
		Start:    start,
		Count:    count,
		Data:     buf,
	}, timeout)
}

func (s *Session) exchange(req *modbusIface.Request, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bound || s.closed {
		return ErrNotInitialized
	}
	if req.Count == 0 {
		return ErrZeroCount
	}
	if len(req.Data) < int(req.Count) {
		return fmt.Errorf("%w: %d < %d", ErrShortBuffer, len(req.Data), req.Count)
	}

	s.master.SetTimeout(timeout + ResponseMargin)

	if err := s.master.Query(req); err != nil {
		glog.V(1).Infof("bus: %s query failed: %v", req.Function, err)
		return fmt.Errorf("%w: %w", ErrSend, err)
	}

	start := time.Now()
	for {
		err := s.master.Poll()
		if s.master.State() == modbusIface.StateIdle {
			if err != nil {
				glog.V(1).Infof("bus: %s slave %d failed: %v", req.Function, req.Slave, err)
				return fmt.Errorf("%w: %w", ErrExchange, err)
			}
			glog.V(1).Infof("bus: %s slave %d idle after %v", req.Function, req.Slave, time.Since(start))
			return nil
		}
		if time.Since(start) >= timeout {
			s.master.Discard()
			glog.V(1).Infof("bus: %s slave %d poll timeout", req.Function, req.Slave)
			return ErrTimeout
		}
	}
}

// Close releases the transport. The session cannot be rebound afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bound || s.closed {
		return nil
	}
	s.closed = true
	return s.master.Close()
}
