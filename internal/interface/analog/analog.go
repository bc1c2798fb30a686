package analog

//go:generate mockgen -destination=mock/mock_analog.go -package=mock_analog . FrontEnd

import "fmt"

// Resolution is the converter's full-scale range in volts.
type Resolution float64

const (
	FS6144 Resolution = 6.144
	FS4096 Resolution = 4.096
	FS2048 Resolution = 2.048
	FS1024 Resolution = 1.024
	FS0512 Resolution = 0.512
	FS0256 Resolution = 0.256
)

var resolutions = []Resolution{FS6144, FS4096, FS2048, FS1024, FS0512, FS0256}

// ParseResolution accepts the full-scale value in volts, e.g. "4.096".
func ParseResolution(v float64) (Resolution, error) {
	for _, r := range resolutions {
		if float64(r) == v {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unsupported ADC full scale %.3fV", v)
}

// VoltageChannel is one of the two 0-10V inputs.
type VoltageChannel uint8

const (
	V0 VoltageChannel = iota
	V1
)

// CurrentChannel is one of the three 4-20mA inputs.
type CurrentChannel uint8

const (
	I0 CurrentChannel = iota
	I1
	I2
)

const (
	VoltageChannels = 2
	CurrentChannels = 3
)

// FrontEnd is the 0-10V / 4-20mA measurement side of the module.
type FrontEnd interface {
	Configure(res Resolution) error
	ReadVoltage(ch VoltageChannel) (float64, error)
	ReadCurrentLoop(ch CurrentChannel) (float64, error)
}
