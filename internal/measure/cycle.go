// Package measure runs the periodic measurement cycle: read the analog inputs
// and one Modbus register block, publish one state message per value.
package measure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/glog"
	"github.com/tetragramaton/rak13015-go/internal/config"
	"github.com/tetragramaton/rak13015-go/internal/driver"
	"github.com/tetragramaton/rak13015-go/internal/ha"
	"github.com/tetragramaton/rak13015-go/internal/interface/analog"
	mqttIface "github.com/tetragramaton/rak13015-go/internal/interface/mqtt"
)

// Module is the subset of *driver.Driver the cycle reads from.
type Module interface {
	ReadVoltage(ch analog.VoltageChannel) (float64, error)
	ReadCurrentLoop(ch analog.CurrentChannel) (float64, error)
	RequestModbus(slave byte, start, count uint16, buf []uint16, timeout time.Duration) error
}

type SensorState struct {
	Ts    int64    `json:"ts"`
	Cap   string   `json:"cap"`
	Unit  string   `json:"unit,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

type Cycle struct {
	module Module
	pub    mqttIface.Publisher
	cfg    config.Config
	buf    []uint16
}

func NewCycle(m Module, pub mqttIface.Publisher, cfg config.Config) *Cycle {
	return &Cycle{
		module: m,
		pub:    pub,
		cfg:    cfg,
		buf:    make([]uint16, cfg.Modbus.Count),
	}
}

func currentCap(ch analog.CurrentChannel) string { return fmt.Sprintf("current.i%d", ch) }
func voltageCap(ch analog.VoltageChannel) string { return fmt.Sprintf("voltage.v%d", ch) }

// Meta lists every capability the cycle may publish.
func (c *Cycle) Meta() ha.Meta {
	meta := ha.Meta{
		DeviceID: c.cfg.DeviceID,
		Model:    c.cfg.Model,
		Area:     c.cfg.Area,
		Units:    map[string]string{},
	}
	if c.cfg.Analog.Enabled {
		for ch := analog.CurrentChannel(0); ch < analog.CurrentChannels; ch++ {
			meta.Caps = append(meta.Caps, currentCap(ch))
			meta.Units[currentCap(ch)] = "mA"
		}
		for ch := analog.VoltageChannel(0); ch < analog.VoltageChannels; ch++ {
			meta.Caps = append(meta.Caps, voltageCap(ch))
			meta.Units[voltageCap(ch)] = "V"
		}
	}
	for _, r := range c.cfg.Modbus.Registers {
		meta.Caps = append(meta.Caps, r.Cap)
		if r.Unit != "" {
			meta.Units[r.Cap] = r.Unit
		}
	}
	return meta
}

// Announce publishes the retained meta message.
func (c *Cycle) Announce() error {
	return c.publish(c.Meta(), ha.MetaTopic(c.cfg.DeviceID), true)
}

// RunOnce reads every input and publishes what it could read. It returns the
// number of published states and the joined read and publish errors.
func (c *Cycle) RunOnce(now int64) (int, error) {
	var (
		errs []error
		sent int
	)
	emit := func(capName, unit string, v float64, prec int) {
		state := SensorState{Ts: now, Cap: capName, Unit: unit, Value: round(v, prec)}
		if err := c.publish(state, ha.StateTopic(c.cfg.DeviceID), false); err != nil {
			errs = append(errs, err)
			return
		}
		sent++
	}

	if c.cfg.Analog.Enabled {
		for ch := analog.CurrentChannel(0); ch < analog.CurrentChannels; ch++ {
			v, err := c.module.ReadCurrentLoop(ch)
			if err != nil {
				errs = append(errs, c.readErr(currentCap(ch), err))
				continue
			}
			emit(currentCap(ch), "mA", v, 2)
		}
		for ch := analog.VoltageChannel(0); ch < analog.VoltageChannels; ch++ {
			v, err := c.module.ReadVoltage(ch)
			if err != nil {
				errs = append(errs, c.readErr(voltageCap(ch), err))
				continue
			}
			emit(voltageCap(ch), "V", v, 2)
		}
	}

	if len(c.cfg.Modbus.Registers) > 0 {
		mb := c.cfg.Modbus
		if err := c.module.RequestModbus(mb.SlaveID, mb.Start, mb.Count, c.buf, c.cfg.Timeout()); err != nil {
			errs = append(errs, fmt.Errorf("modbus slave %d: %w", mb.SlaveID, err))
		} else {
			for _, r := range mb.Registers {
				emit(r.Cap, r.Unit, float64(c.buf[r.Index])/r.Scale, 2)
			}
		}
	}
	return sent, errors.Join(errs...)
}

// Run announces the device and runs the cycle every interval until ctx ends.
func (c *Cycle) Run(ctx context.Context) error {
	if err := c.Announce(); err != nil {
		glog.Warningf("meta publish: %v", err)
	}
	ticker := time.NewTicker(c.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C:
			n, err := c.RunOnce(t.Unix())
			if err != nil {
				glog.Warningf("cycle: %v", err)
			}
			glog.V(1).Infof("cycle: published %d states", n)
		}
	}
}

func (c *Cycle) readErr(capName string, err error) error {
	return fmt.Errorf("read %s: %w", capName, err)
}

func (c *Cycle) publish(payload any, topic string, retain bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.pub.PublishEvent(mqttIface.Message{
		Topic:   topic,
		Payload: data,
		QoS:     1,
		Retain:  retain,
	})
}

func round(v float64, prec int) *float64 {
	p := math.Pow(10, float64(prec))
	r := math.Round(v*p) / p
	return &r
}

var _ Module = (*driver.Driver)(nil)
