package modbus

import (
	"fmt"
	"time"

	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"
	"github.com/golang/glog"
	modbusIface "github.com/tetragramaton/rak13015-go/internal/interface/modbus"
)

const (
	DefaultTimeout  = 2000 * time.Millisecond
	DefaultPollStep = time.Millisecond
)

// Port is the part of the serial handler the master reconfigures between exchanges.
type Port interface {
	SetSlave(id byte)
	SetTimeout(d time.Duration)
	Close() error
}

// Dialer opens a transport and returns the client used for exchanges on it.
type Dialer func(t modbusIface.Transport, timeout time.Duration) (modbusIface.API, Port, error)

type rtuPort struct {
	h *modbus.RTUClientHandler
}

func (p *rtuPort) SetSlave(id byte) { p.h.SlaveId = id }

// SetTimeout closes the port on change; goburrow applies the read timeout
// when it reopens the port on the next Send.
func (p *rtuPort) SetTimeout(d time.Duration) {
	if p.h.Timeout == d {
		return
	}
	p.h.Timeout = d
	if err := p.h.Close(); err != nil {
		glog.V(1).Infof("modbus: reopen %s: %v", p.h.Address, err)
	}
}

func (p *rtuPort) Close() error { return p.h.Close() }

// DialRTU opens a goburrow RTU handler on the serial line described by t.
func DialRTU(t modbusIface.Transport, timeout time.Duration) (modbusIface.API, Port, error) {
	rh := modbus.NewRTUClientHandler(t.Port)
	rh.BaudRate = t.BaudRate
	rh.DataBits = t.DataBits
	rh.Parity = t.Parity
	rh.StopBits = t.StopBits
	rh.Timeout = timeout
	if t.RS485 {
		rh.RS485 = serial.RS485Config{
			Enabled:           true,
			RtsHighDuringSend: true,
		}
	}
	if err := rh.Connect(); err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", t.Port, err)
	}
	return modbus.NewClient(rh), &rtuPort{h: rh}, nil
}

type result struct {
	data []byte
	err  error
}

// RTUMaster runs one exchange at a time on a goroutine and reports its
// completion through Poll.
type RTUMaster struct {
	dial    Dialer
	step    time.Duration
	api     modbusIface.API
	port    Port
	timeout time.Duration

	state modbusIface.State
	req   *modbusIface.Request
	done  chan result
	// stale holds the completion channel of an abandoned exchange.
	stale chan result
}

type Option func(*RTUMaster)

func WithDialer(d Dialer) Option {
	return func(m *RTUMaster) { m.dial = d }
}

// WithPollStep sets how long a single Poll waits for completion. Zero makes
// Poll non-blocking.
func WithPollStep(d time.Duration) Option {
	return func(m *RTUMaster) { m.step = d }
}

func NewMaster(opts ...Option) *RTUMaster {
	m := &RTUMaster{
		dial:    DialRTU,
		step:    DefaultPollStep,
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *RTUMaster) Bind(t modbusIface.Transport) error {
	if t.DataBits == 0 {
		t.DataBits = 8
	}
	if t.Parity == "" {
		t.Parity = "N"
	}
	if t.StopBits == 0 {
		t.StopBits = 1
	}
	api, p, err := m.dial(t, m.timeout)
	if err != nil {
		return err
	}
	if m.port != nil {
		_ = m.port.Close()
	}
	m.api, m.port = api, p
	m.state = modbusIface.StateIdle
	glog.V(1).Infof("modbus: bound to %s at %d baud", t.Port, t.BaudRate)
	return nil
}

// SetTimeout takes effect with the next Query.
func (m *RTUMaster) SetTimeout(d time.Duration) {
	m.timeout = d
}

func (m *RTUMaster) Query(req *modbusIface.Request) error {
	if m.api == nil {
		return modbusIface.ErrNotBound
	}
	if m.state == modbusIface.StateWaiting {
		return modbusIface.ErrBusy
	}
	if m.stale != nil {
		select {
		case <-m.stale:
			glog.V(1).Info("modbus: dropped late response of abandoned exchange")
			m.stale = nil
		default:
			return modbusIface.ErrBusy
		}
	}
	if int(req.Count) > len(req.Data) {
		return fmt.Errorf("modbus: buffer holds %d elements, %d requested", len(req.Data), req.Count)
	}

	var payload []byte
	switch req.Function {
	case modbusIface.ReadRegisters:
	case modbusIface.WriteMultipleCoils:
		payload = packCoils(req.Data[:req.Count])
	default:
		return fmt.Errorf("modbus: unsupported function %d", req.Function)
	}

	m.port.SetSlave(req.Slave)
	m.port.SetTimeout(m.timeout)

	done := make(chan result, 1)
	go exchange(m.api, req.Function, req.Start, req.Count, payload, done)

	m.req = req
	m.done = done
	m.state = modbusIface.StateWaiting
	return nil
}

func exchange(api modbusIface.API, fn modbusIface.Function, start, count uint16, payload []byte, done chan<- result) {
	var res result
	switch fn {
	case modbusIface.ReadRegisters:
		res.data, res.err = api.ReadHoldingRegisters(start, count)
	case modbusIface.WriteMultipleCoils:
		_, res.err = api.WriteMultipleCoils(start, count, payload)
	}
	done <- res
}

func (m *RTUMaster) Poll() error {
	if m.state != modbusIface.StateWaiting {
		return nil
	}

	var res result
	if m.step <= 0 {
		select {
		case res = <-m.done:
		default:
			return nil
		}
	} else {
		t := time.NewTimer(m.step)
		select {
		case res = <-m.done:
			t.Stop()
		case <-t.C:
			return nil
		}
	}

	req := m.req
	m.req, m.done = nil, nil
	m.state = modbusIface.StateIdle

	if res.err != nil {
		return res.err
	}
	if req.Function == modbusIface.ReadRegisters {
		return unpackRegisters(res.data, req.Data[:req.Count])
	}
	return nil
}

func (m *RTUMaster) State() modbusIface.State {
	return m.state
}

func (m *RTUMaster) Discard() {
	if m.state != modbusIface.StateWaiting {
		return
	}
	m.stale = m.done
	m.req, m.done = nil, nil
	m.state = modbusIface.StateIdle
}

func (m *RTUMaster) Close() error {
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.api, m.port = nil, nil
	return err
}

// packCoils packs one coil per element, LSB first; any non-zero element is ON.
func packCoils(vals []uint16) []byte {
	out := make([]byte, (len(vals)+7)/8)
	for i, v := range vals {
		if v != 0 {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func unpackRegisters(data []byte, dst []uint16) error {
	if len(data) < 2*len(dst) {
		return fmt.Errorf("modbus: short response: %d bytes for %d registers", len(data), len(dst))
	}
	for i := range dst {
		dst[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return nil
}
