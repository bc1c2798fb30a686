// Package driver is the application-facing handle of one RAK13015 module:
// analog inputs on the I2C side, the Modbus master on the RS-485 side, both
// gated by the slot descriptor resolved at construction.
package driver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/tetragramaton/rak13015-go/internal/bus"
	"github.com/tetragramaton/rak13015-go/internal/interface/analog"
	"github.com/tetragramaton/rak13015-go/internal/slot"
)

// Unmeasured is the cached value of a channel that was never read.
const Unmeasured = -50.0

var (
	ErrUnknownChannel = errors.New("driver: unknown channel")
	ErrNoAnalog       = errors.New("driver: analog front end not initialized")
)

// Bus is the Modbus side of the module, implemented by *bus.Session.
type Bus interface {
	Initialize(d slot.Descriptor, baud int) error
	Request(slave byte, start, count uint16, buf []uint16, timeout time.Duration) error
	Write(slave byte, start, count uint16, buf []uint16, timeout time.Duration) error
}

type Driver struct {
	slot  slot.Slot
	board slot.Board
	desc  slot.Descriptor

	bus    Bus
	analog analog.FrontEnd

	mu        sync.Mutex
	hasAnalog bool
	voltage   [analog.VoltageChannels]float64
	current   [analog.CurrentChannels]float64
}

// New resolves the descriptor for (s, b) once. fe may be nil when the module
// is used for Modbus only.
func New(s slot.Slot, b slot.Board, session Bus, fe analog.FrontEnd) *Driver {
	d := &Driver{
		slot:   s,
		board:  b,
		desc:   slot.Resolve(s, b),
		bus:    session,
		analog: fe,
	}
	for i := range d.voltage {
		d.voltage[i] = Unmeasured
	}
	for i := range d.current {
		d.current[i] = Unmeasured
	}
	if !d.desc.Valid() {
		glog.Warningf("driver: slot %s is not usable on %s", s, b)
	}
	return d
}

func (d *Driver) Descriptor() slot.Descriptor { return d.desc }
func (d *Driver) Slot() slot.Slot             { return d.slot }
func (d *Driver) Board() slot.Board           { return d.board }

// Init brings up both sides. Each side is attempted even when the other fails.
func (d *Driver) Init(res analog.Resolution, baud int) error {
	if !d.desc.Valid() {
		return bus.ErrInvalidResource
	}
	return errors.Join(d.InitAnalog(res), d.InitModbus(baud))
}

// InitAnalog configures the converters only, for setups where the RS-485 port
// is driven by another stack.
func (d *Driver) InitAnalog(res analog.Resolution) error {
	if !d.desc.Valid() {
		return bus.ErrInvalidResource
	}
	if d.analog == nil {
		return ErrNoAnalog
	}
	if err := d.analog.Configure(res); err != nil {
		return fmt.Errorf("driver: analog init: %w", err)
	}
	d.mu.Lock()
	d.hasAnalog = true
	d.mu.Unlock()
	glog.V(1).Infof("driver: analog ready at %.3fV full scale", float64(res))
	return nil
}

// InitModbus binds the session to the slot's serial port only.
func (d *Driver) InitModbus(baud int) error {
	if err := d.bus.Initialize(d.desc, baud); err != nil {
		return fmt.Errorf("driver: modbus init: %w", err)
	}
	return nil
}

// ReadVoltage measures a 0-10V channel and caches the result.
func (d *Driver) ReadVoltage(ch analog.VoltageChannel) (float64, error) {
	if int(ch) >= analog.VoltageChannels {
		return Unmeasured, fmt.Errorf("%w: V%d", ErrUnknownChannel, ch)
	}
	if err := d.analogReady(); err != nil {
		return Unmeasured, err
	}
	v, err := d.analog.ReadVoltage(ch)
	if err != nil {
		return Unmeasured, err
	}
	d.mu.Lock()
	d.voltage[ch] = v
	d.mu.Unlock()
	return v, nil
}

// ReadCurrentLoop measures a 4-20mA channel and caches the result.
func (d *Driver) ReadCurrentLoop(ch analog.CurrentChannel) (float64, error) {
	if int(ch) >= analog.CurrentChannels {
		return Unmeasured, fmt.Errorf("%w: I%d", ErrUnknownChannel, ch)
	}
	if err := d.analogReady(); err != nil {
		return Unmeasured, err
	}
	v, err := d.analog.ReadCurrentLoop(ch)
	if err != nil {
		return Unmeasured, err
	}
	d.mu.Lock()
	d.current[ch] = v
	d.mu.Unlock()
	return v, nil
}

// LastVoltage returns the cached value of ch, Unmeasured if never read.
func (d *Driver) LastVoltage(ch analog.VoltageChannel) float64 {
	if int(ch) >= analog.VoltageChannels {
		return Unmeasured
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voltage[ch]
}

func (d *Driver) LastCurrent(ch analog.CurrentChannel) float64 {
	if int(ch) >= analog.CurrentChannels {
		return Unmeasured
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current[ch]
}

// RequestModbus reads count holding registers from slave into buf.
func (d *Driver) RequestModbus(slave byte, start, count uint16, buf []uint16, timeout time.Duration) error {
	return d.bus.Request(slave, start, count, buf, timeout)
}

// WriteModbus sets count coils on slave from buf.
func (d *Driver) WriteModbus(slave byte, start, count uint16, buf []uint16, timeout time.Duration) error {
	return d.bus.Write(slave, start, count, buf, timeout)
}

func (d *Driver) analogReady() error {
	if !d.desc.Valid() {
		return bus.ErrInvalidResource
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasAnalog {
		return ErrNoAnalog
	}
	return nil
}
