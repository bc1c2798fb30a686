package bus

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	clientModbus "github.com/tetragramaton/rak13015-go/internal/client/modbus"
	modbusIface "github.com/tetragramaton/rak13015-go/internal/interface/modbus"
	mock_modbus "github.com/tetragramaton/rak13015-go/internal/interface/modbus/mock"
	"github.com/tetragramaton/rak13015-go/internal/slot"
)

// stepMaster is a simulated slave: it answers after idleAfter polls, or never
// when idleAfter is negative.
type stepMaster struct {
	registers []uint16
	idleAfter int
	queryErr  error
	pollErr   error

	bound     []modbusIface.Transport
	timeouts  []time.Duration
	queries   []modbusIface.Request
	written   [][]uint16
	polls     int
	discarded int

	state   modbusIface.State
	pending *modbusIface.Request
	left    int
}

func (m *stepMaster) Bind(t modbusIface.Transport) error {
	m.bound = append(m.bound, t)
	return nil
}

func (m *stepMaster) SetTimeout(d time.Duration) { m.timeouts = append(m.timeouts, d) }

func (m *stepMaster) Query(req *modbusIface.Request) error {
	if m.queryErr != nil {
		return m.queryErr
	}
	m.queries = append(m.queries, *req)
	m.pending = req
	m.left = m.idleAfter
	m.state = modbusIface.StateWaiting
	return nil
}

func (m *stepMaster) Poll() error {
	m.polls++
	if m.state != modbusIface.StateWaiting || m.left < 0 {
		return nil
	}
	if m.left > 0 {
		m.left--
		return nil
	}
	m.state = modbusIface.StateIdle
	if m.pollErr != nil {
		return m.pollErr
	}
	switch m.pending.Function {
	case modbusIface.ReadRegisters:
		copy(m.pending.Data[:m.pending.Count], m.registers[m.pending.Start:])
	case modbusIface.WriteMultipleCoils:
		m.written = append(m.written, append([]uint16(nil), m.pending.Data[:m.pending.Count]...))
	}
	m.pending = nil
	return nil
}

func (m *stepMaster) State() modbusIface.State { return m.state }

func (m *stepMaster) Discard() {
	m.discarded++
	m.pending = nil
	m.state = modbusIface.StateIdle
}

func (m *stepMaster) Close() error { return nil }

var testPorts = Ports{1: "/dev/ttyS1", 2: "/dev/ttyS2"}

func newSlave(idleAfter int) *stepMaster {
	return &stepMaster{
		registers: []uint16{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
		idleAfter: idleAfter,
	}
}

func TestInitialize_InvalidDescriptorNeverBinds(t *testing.T) {
	ctrl := gomock.NewController(t)
	master := mock_modbus.NewMockMaster(ctrl)
	s := NewSession(master, testPorts)

	for _, baud := range []int{1200, 9600, 115200} {
		err := s.Initialize(slot.Resolve(slot.SlotA, slot.RAK19007), baud)
		require.ErrorIs(t, err, ErrInvalidResource)
	}
}

func TestInitialize_BindsResolvedPort(t *testing.T) {
	ctrl := gomock.NewController(t)
	master := mock_modbus.NewMockMaster(ctrl)
	gomock.InOrder(
		master.EXPECT().Bind(modbusIface.Transport{Port: "/dev/ttyS2", BaudRate: 19200, RS485: true}).Return(nil),
		master.EXPECT().SetTimeout(DefaultTimeout),
	)

	s := NewSession(master, testPorts, WithRS485(true))
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19001), 19200))
	require.Equal(t, "/dev/ttyS2", s.Port())

	require.ErrorIs(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19001), 19200), ErrAlreadyBound)
}

func TestInitialize_BindError(t *testing.T) {
	ctrl := gomock.NewController(t)
	master := mock_modbus.NewMockMaster(ctrl)
	master.EXPECT().Bind(gomock.Any()).Return(errors.New("no such device"))

	s := NewSession(master, testPorts)
	require.Error(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600))
	require.ErrorIs(t, s.Request(1, 0, 1, make([]uint16, 1), time.Second), ErrNotInitialized)
}

func TestInitialize_MissingPort(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewSession(mock_modbus.NewMockMaster(ctrl), Ports{2: "/dev/ttyS2"})
	require.ErrorIs(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600), ErrNoTransport)
}

func TestRequestBeforeInitializeDoesNotBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewSession(mock_modbus.NewMockMaster(ctrl), testPorts)

	start := time.Now()
	require.ErrorIs(t, s.Request(1, 0, 5, make([]uint16, 5), 5*time.Second), ErrNotInitialized)
	require.ErrorIs(t, s.Write(1, 0, 5, make([]uint16, 5), 5*time.Second), ErrNotInitialized)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRequest_SlotDScenario(t *testing.T) {
	m := newSlave(3)
	s := NewSession(m, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600))
	require.Equal(t, []modbusIface.Transport{{Port: "/dev/ttyS1", BaudRate: 9600}}, m.bound)

	buf := make([]uint16, 8)
	require.NoError(t, s.Request(1, 0, 5, buf, 5000*time.Millisecond))
	require.Equal(t, []uint16{0x00, 0x01, 0x02, 0x03, 0x04}, buf[:5])

	require.Len(t, m.queries, 1)
	q := m.queries[0]
	require.Equal(t, byte(1), q.Slave)
	require.Equal(t, modbusIface.ReadRegisters, q.Function)
	require.Equal(t, uint16(0), q.Start)
	require.Equal(t, uint16(5), q.Count)
	require.Equal(t, []time.Duration{DefaultTimeout, 6000 * time.Millisecond}, m.timeouts)
	require.Equal(t, 4, m.polls)
}

func TestRequest_Idempotent(t *testing.T) {
	m := newSlave(0)
	s := NewSession(m, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19003), 9600))

	first := make([]uint16, 4)
	second := make([]uint16, 4)
	require.NoError(t, s.Request(1, 2, 4, first, time.Second))
	require.NoError(t, s.Request(1, 2, 4, second, time.Second))
	require.Equal(t, first, second)
	require.Equal(t, []uint16{2, 3, 4, 5}, first)
}

func TestRequest_TimeoutBound(t *testing.T) {
	m := newSlave(-1)
	s := NewSession(m, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600))

	timeout := 50 * time.Millisecond
	start := time.Now()
	err := s.Request(1, 0, 5, make([]uint16, 5), timeout)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	require.GreaterOrEqual(t, elapsed, timeout)
	require.Less(t, elapsed, timeout+100*time.Millisecond)
	require.Equal(t, 1, m.discarded)
	require.Equal(t, modbusIface.StateIdle, m.State())
}

func TestRequest_SendFailureSkipsPolling(t *testing.T) {
	m := newSlave(0)
	s := NewSession(m, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600))
	m.queryErr = errors.New("bus busy")

	start := time.Now()
	err := s.Request(1, 0, 5, make([]uint16, 5), 5*time.Second)
	require.ErrorIs(t, err, ErrSend)
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.Zero(t, m.polls)
}

func TestRequest_ExchangeError(t *testing.T) {
	m := newSlave(1)
	m.pollErr = errors.New("modbus: exception 2")
	s := NewSession(m, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600))

	require.ErrorIs(t, s.Request(1, 0, 5, make([]uint16, 5), time.Second), ErrExchange)
}

func TestRequest_ShortBuffer(t *testing.T) {
	m := newSlave(0)
	s := NewSession(m, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600))

	require.ErrorIs(t, s.Request(1, 0, 5, make([]uint16, 4), time.Second), ErrShortBuffer)
	require.Empty(t, m.queries)
}

func TestRequest_ZeroCount(t *testing.T) {
	m := newSlave(0)
	s := NewSession(m, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600))

	err := s.Request(1, 0, 0, make([]uint16, 4), time.Second)
	require.ErrorIs(t, err, ErrZeroCount)
	require.NotErrorIs(t, err, ErrShortBuffer)
	require.ErrorIs(t, s.Write(1, 0, 0, nil, time.Second), ErrZeroCount)
	require.Empty(t, m.queries)
}

func TestWrite_MultipleCoils(t *testing.T) {
	m := newSlave(2)
	s := NewSession(m, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotE, slot.RAK19001), 9600))
	require.Equal(t, "/dev/ttyS2", m.bound[0].Port)

	vals := []uint16{0x00, 0x01, 0x02, 0x03, 0x04}
	require.NoError(t, s.Write(1, 0, 5, vals, 5*time.Second))
	require.Equal(t, modbusIface.WriteMultipleCoils, m.queries[0].Function)
	require.Equal(t, [][]uint16{{0x00, 0x01, 0x02, 0x03, 0x04}}, m.written)
	require.Equal(t, []uint16{0x00, 0x01, 0x02, 0x03, 0x04}, vals)
}

func TestClose_BlocksFurtherUse(t *testing.T) {
	m := newSlave(0)
	s := NewSession(m, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600))
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Request(1, 0, 1, make([]uint16, 1), time.Second), ErrNotInitialized)
	require.ErrorIs(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600), ErrAlreadyBound)
}

// gatedSlave answers only once gate is closed. Its first answer is marked
// so a late delivery is recognizable.
type gatedSlave struct {
	gate  chan struct{}
	calls atomic.Int32
}

const lateMark = 0xDEAD

func (g *gatedSlave) ReadHoldingRegisters(_, quantity uint16) ([]byte, error) {
	n := g.calls.Add(1)
	<-g.gate
	out := make([]byte, 2*quantity)
	for i := 0; i < int(quantity); i++ {
		v := uint16(i)
		if n == 1 {
			v = lateMark
		}
		out[2*i], out[2*i+1] = byte(v>>8), byte(v)
	}
	return out, nil
}

func (g *gatedSlave) WriteMultipleCoils(_, _ uint16, _ []byte) ([]byte, error) {
	g.calls.Add(1)
	<-g.gate
	return nil, nil
}

type nopPort struct{}

func (nopPort) SetSlave(byte)            {}
func (nopPort) SetTimeout(time.Duration) {}
func (nopPort) Close() error             { return nil }

func newRTUSession(t *testing.T, api modbusIface.API) *Session {
	t.Helper()
	master := clientModbus.NewMaster(clientModbus.WithDialer(
		func(modbusIface.Transport, time.Duration) (modbusIface.API, clientModbus.Port, error) {
			return api, nopPort{}, nil
		}))
	s := NewSession(master, testPorts)
	require.NoError(t, s.Initialize(slot.Resolve(slot.SlotD, slot.RAK19007), 9600))
	return s
}

func TestRequest_TimeoutThenRetryWithRTUMaster(t *testing.T) {
	slave := &gatedSlave{gate: make(chan struct{})}
	s := newRTUSession(t, slave)

	first := make([]uint16, 3)
	require.ErrorIs(t, s.Request(1, 0, 3, first, 30*time.Millisecond), ErrTimeout)

	// the abandoned exchange has not drained yet
	err := s.Request(1, 0, 3, make([]uint16, 3), 30*time.Millisecond)
	require.ErrorIs(t, err, ErrSend)
	require.ErrorIs(t, err, modbusIface.ErrBusy)

	close(slave.gate)

	buf := make([]uint16, 3)
	require.Eventually(t, func() bool {
		return s.Request(1, 0, 3, buf, time.Second) == nil
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []uint16{0, 1, 2}, buf)
	require.Equal(t, []uint16{0, 0, 0}, first)
}

func TestWrite_TimeoutThenRetryWithRTUMaster(t *testing.T) {
	slave := &gatedSlave{gate: make(chan struct{})}
	s := newRTUSession(t, slave)

	coils := []uint16{1, 0, 1}
	require.ErrorIs(t, s.Write(1, 0, 3, coils, 30*time.Millisecond), ErrTimeout)
	require.ErrorIs(t, s.Write(1, 0, 3, coils, 30*time.Millisecond), modbusIface.ErrBusy)

	close(slave.gate)
	require.Eventually(t, func() bool {
		return s.Write(1, 0, 3, coils, time.Second) == nil
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []uint16{1, 0, 1}, coils)
	require.Equal(t, int32(2), slave.calls.Load())
}
