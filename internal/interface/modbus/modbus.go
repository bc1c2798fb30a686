package modbus

//go:generate mockgen -destination=mock/mock_modbus.go -package=mock_modbus . API,Master

import (
	"errors"
	"time"
)

// Function selects the request kind issued by the master.
type Function uint8

const (
	ReadRegisters      Function = 3
	WriteMultipleCoils Function = 15
)

func (f Function) String() string {
	switch f {
	case ReadRegisters:
		return "read-registers"
	case WriteMultipleCoils:
		return "write-multiple-coils"
	}
	return "unknown"
}

// Request is one telegram. Data is borrowed from the caller for the duration
// of the exchange and must hold at least Count elements.
type Request struct {
	Slave    byte     `json:"slave"`
	Function Function `json:"function"`
	Start    uint16   `json:"start"`
	Count    uint16   `json:"count"`
	Data     []uint16 `json:"-"`
}

// State is the master's communication state.
type State uint8

const (
	StateIdle State = iota
	StateWaiting
)

func (s State) String() string {
	if s == StateIdle {
		return "idle"
	}
	return "waiting"
}

// Transport describes the serial line a master is bound to.
type Transport struct {
	Port     string `json:"port" yaml:"port"`
	BaudRate int    `json:"baud" yaml:"baud"`
	DataBits int    `json:"data_bits" yaml:"data_bits"`
	Parity   string `json:"parity" yaml:"parity"` // "N","E","O"
	StopBits int    `json:"stop_bits" yaml:"stop_bits"`
	RS485    bool   `json:"rs485" yaml:"rs485"`
}

var (
	ErrNotBound = errors.New("modbus: master not bound to a transport")
	ErrBusy     = errors.New("modbus: exchange in flight")
)

// Master is a single-exchange Modbus RTU master driven by polling.
type Master interface {
	Bind(t Transport) error
	SetTimeout(d time.Duration)
	// Query transmits req and moves the master to StateWaiting.
	Query(req *Request) error
	// Poll advances the reception state machine by one step. A non-nil error
	// reports a completed exchange that failed.
	Poll() error
	State() State
	// Discard abandons the exchange in flight; a late response is dropped.
	Discard()
	Close() error
}

// API is the subset of a goburrow modbus.Client used by the RTU master.
type API interface {
	ReadHoldingRegisters(address, quantity uint16) (results []byte, err error)
	WriteMultipleCoils(address, quantity uint16, value []byte) (results []byte, err error)
}
