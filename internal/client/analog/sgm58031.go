package analog

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	analogIface "github.com/tetragramaton/rak13015-go/internal/interface/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// I2C addresses of the two SGM58031 converters.
const (
	AddrAD0 uint16 = 0x49
	AddrAD1 uint16 = 0x48
)

const (
	regConversion byte = 0x00
	regConfig     byte = 0x01

	pgaMask uint16 = 0x0E00

	// DefaultSettle is the wait between starting a conversion and reading it.
	DefaultSettle = 100 * time.Millisecond

	dividerGain = 11.0
	shuntOhms   = 150.0
)

// Single-shot config words (OS | MUX | PGA 4.096 | MODE, 128 SPS, comparator off).
const (
	cfgAIN0 uint16 = 0xC383
	cfgAIN1 uint16 = 0xD383
	cfgAIN2 uint16 = 0xE383
	cfgAIN3 uint16 = 0xF383
)

var ErrMissingConverter = errors.New("analog: converter not found on I2C bus")

var pgaCodes = map[analogIface.Resolution]uint16{
	analogIface.FS6144: 0x0000,
	analogIface.FS4096: 0x0200,
	analogIface.FS2048: 0x0400,
	analogIface.FS1024: 0x0600,
	analogIface.FS0512: 0x0800,
	analogIface.FS0256: 0x0A00,
}

type converter struct {
	dev i2c.Dev
	fs  analogIface.Resolution
	pga uint16
}

func (c *converter) probe() error {
	var r [2]byte
	return c.dev.Tx([]byte{regConfig}, r[:])
}

func (c *converter) read(cfg uint16, settle time.Duration) (float64, error) {
	cfg = cfg&^pgaMask | c.pga
	if err := c.dev.Tx([]byte{regConfig, byte(cfg >> 8), byte(cfg)}, nil); err != nil {
		return 0, fmt.Errorf("analog: start conversion at 0x%02X: %w", c.dev.Addr, err)
	}
	time.Sleep(settle)
	var r [2]byte
	if err := c.dev.Tx([]byte{regConversion}, r[:]); err != nil {
		return 0, fmt.Errorf("analog: read conversion at 0x%02X: %w", c.dev.Addr, err)
	}
	raw := int16(uint16(r[0])<<8 | uint16(r[1]))
	return float64(raw) * float64(c.fs) / 32768.0, nil
}

// FrontEnd reads the RAK13015 inputs through its two converters.
type FrontEnd struct {
	ad0    converter
	ad1    converter
	settle time.Duration
}

func NewFrontEnd(bus i2c.Bus, settle time.Duration) *FrontEnd {
	fe := &FrontEnd{
		ad0:    converter{dev: i2c.Dev{Bus: bus, Addr: AddrAD0}},
		ad1:    converter{dev: i2c.Dev{Bus: bus, Addr: AddrAD1}},
		settle: settle,
	}
	fe.setResolution(analogIface.FS4096)
	return fe
}

// Open initializes the host drivers and opens the named I2C bus; an empty
// name selects the first bus found.
func Open(name string) (*FrontEnd, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("analog: host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("analog: open i2c %q: %w", name, err)
	}
	return NewFrontEnd(bus, DefaultSettle), bus, nil
}

func (fe *FrontEnd) setResolution(res analogIface.Resolution) {
	for _, c := range []*converter{&fe.ad0, &fe.ad1} {
		c.fs = res
		c.pga = pgaCodes[res]
	}
}

// Configure probes both converters and applies the full-scale range.
func (fe *FrontEnd) Configure(res analogIface.Resolution) error {
	if _, ok := pgaCodes[res]; !ok {
		return fmt.Errorf("analog: unsupported resolution %v", res)
	}
	var missing []error
	for _, c := range []*converter{&fe.ad0, &fe.ad1} {
		if err := c.probe(); err != nil {
			glog.V(1).Infof("analog: no converter at 0x%02X: %v", c.dev.Addr, err)
			missing = append(missing, fmt.Errorf("%w: 0x%02X", ErrMissingConverter, c.dev.Addr))
			continue
		}
		glog.V(1).Infof("analog: found converter at 0x%02X", c.dev.Addr)
	}
	if len(missing) > 0 {
		return errors.Join(missing...)
	}
	fe.setResolution(res)
	return nil
}

// ReadVoltage returns the 0-10V input in volts.
func (fe *FrontEnd) ReadVoltage(ch analogIface.VoltageChannel) (float64, error) {
	var (
		v   float64
		err error
	)
	switch ch {
	case analogIface.V0:
		v, err = fe.ad0.read(cfgAIN3, fe.settle)
	case analogIface.V1:
		v, err = fe.ad1.read(cfgAIN0, fe.settle)
	default:
		return 0, fmt.Errorf("analog: no voltage channel %d", ch)
	}
	if err != nil {
		return 0, err
	}
	v *= dividerGain
	glog.V(1).Infof("analog: V%d = %.2fV", ch, v)
	return v, nil
}

// ReadCurrentLoop returns the 4-20mA input in mA.
func (fe *FrontEnd) ReadCurrentLoop(ch analogIface.CurrentChannel) (float64, error) {
	var cfg uint16
	switch ch {
	case analogIface.I0:
		cfg = cfgAIN0
	case analogIface.I1:
		cfg = cfgAIN1
	case analogIface.I2:
		cfg = cfgAIN2
	default:
		return 0, fmt.Errorf("analog: no current channel %d", ch)
	}
	v, err := fe.ad0.read(cfg, fe.settle)
	if err != nil {
		return 0, err
	}
	ma := v / shuntOhms * 1000
	glog.V(1).Infof("analog: I%d = %.2fmA", ch, ma)
	return ma, nil
}
