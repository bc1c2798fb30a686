// Package cli is an interactive bench shell for exercising a module by hand.
package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/tetragramaton/rak13015-go/internal/config"
	"github.com/tetragramaton/rak13015-go/internal/interface/analog"
	"github.com/tetragramaton/rak13015-go/internal/slot"
)

// Module is the driver surface the shell drives, implemented by *driver.Driver.
type Module interface {
	Descriptor() slot.Descriptor
	Slot() slot.Slot
	Board() slot.Board
	Init(res analog.Resolution, baud int) error
	InitAnalog(res analog.Resolution) error
	InitModbus(baud int) error
	ReadVoltage(ch analog.VoltageChannel) (float64, error)
	ReadCurrentLoop(ch analog.CurrentChannel) (float64, error)
	LastVoltage(ch analog.VoltageChannel) float64
	LastCurrent(ch analog.CurrentChannel) float64
	RequestModbus(slave byte, start, count uint16, buf []uint16, timeout time.Duration) error
	WriteModbus(slave byte, start, count uint16, buf []uint16, timeout time.Duration) error
}

type Shell struct {
	OutputJSON bool

	Shell  *ishell.Shell
	Module Module
	Config config.Config
}

const (
	shellKey  = "$shell"
	readHelp  = "SLAVE START COUNT [TIMEOUT_MS]"
	writeHelp = "SLAVE START COIL..."
)

var commands = []*ishell.Cmd{
	&InitCmd,
	&ReadCmd,
	&WriteCmd,
	&VoltageCmd,
	&CurrentCmd,
	&InfoCmd,
}

func New(m Module, cfg config.Config) *Shell {
	s := &Shell{
		Shell:  ishell.New(),
		Module: m,
		Config: cfg,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", m.Slot()))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

func shellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// run adapts a command implementation to an ishell handler.
func run(fn func(s *Shell, args []string) (string, error)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		out, err := fn(shellFrom(c), c.Args)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(out)
	}
}

var (
	InitCmd = ishell.Cmd{
		Name: "init",
		Help: "[all|modbus|analog] [BAUD]",
		Func: run((*Shell).Init),
	}
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    readHelp,
		Func:    run((*Shell).Read),
	}
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    writeHelp,
		Func:    run((*Shell).Write),
	}
	VoltageCmd = ishell.Cmd{
		Name:    "voltage",
		Aliases: []string{"v"},
		Help:    "CHANNEL (0-1)",
		Func:    run((*Shell).Voltage),
	}
	CurrentCmd = ishell.Cmd{
		Name:    "current",
		Aliases: []string{"i"},
		Help:    "CHANNEL (0-2)",
		Func:    run((*Shell).Current),
	}
	InfoCmd = ishell.Cmd{
		Name: "info",
		Help: "slot resources and cached readings",
		Func: run((*Shell).Info),
	}
)

func (s *Shell) Init(args []string) (string, error) {
	what := "all"
	if len(args) > 0 {
		what = strings.ToLower(args[0])
	}
	baud := s.Config.Modbus.Baud
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return "", fmt.Errorf("invalid baud %q", args[1])
		}
		baud = n
	}
	var err error
	switch what {
	case "all":
		err = s.Module.Init(s.Config.Resolution(), baud)
	case "modbus":
		err = s.Module.InitModbus(baud)
	case "analog":
		err = s.Module.InitAnalog(s.Config.Resolution())
	default:
		return "", fmt.Errorf("unknown target %q", what)
	}
	if err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *Shell) Read(args []string) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("usage: read %s", readHelp)
	}
	nums, err := parseUints(args, 16)
	if err != nil {
		return "", err
	}
	timeout := s.Config.Timeout()
	if len(nums) > 3 {
		timeout = time.Duration(nums[3]) * time.Millisecond
	}
	if nums[0] > 0xff {
		return "", fmt.Errorf("invalid slave %d", nums[0])
	}
	buf := make([]uint16, nums[2])
	if err := s.Module.RequestModbus(byte(nums[0]), uint16(nums[1]), uint16(nums[2]), buf, timeout); err != nil {
		return "", err
	}
	return s.format(buf, func() string {
		parts := make([]string, len(buf))
		for i, v := range buf {
			parts[i] = fmt.Sprintf("[%d]=0x%04X", int(nums[1])+i, v)
		}
		return strings.Join(parts, " ")
	})
}

func (s *Shell) Write(args []string) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("usage: write %s", writeHelp)
	}
	nums, err := parseUints(args, 16)
	if err != nil {
		return "", err
	}
	if nums[0] > 0xff {
		return "", fmt.Errorf("invalid slave %d", nums[0])
	}
	coils := make([]uint16, len(nums)-2)
	for i, v := range nums[2:] {
		coils[i] = uint16(v)
	}
	if err := s.Module.WriteModbus(byte(nums[0]), uint16(nums[1]), uint16(len(coils)), coils, s.Config.Timeout()); err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *Shell) Voltage(args []string) (string, error) {
	ch, err := channel(args)
	if err != nil {
		return "", err
	}
	v, err := s.Module.ReadVoltage(analog.VoltageChannel(ch))
	if err != nil {
		return "", err
	}
	return s.format(v, func() string { return fmt.Sprintf("V%d = %.2f V", ch, v) })
}

func (s *Shell) Current(args []string) (string, error) {
	ch, err := channel(args)
	if err != nil {
		return "", err
	}
	v, err := s.Module.ReadCurrentLoop(analog.CurrentChannel(ch))
	if err != nil {
		return "", err
	}
	return s.format(v, func() string { return fmt.Sprintf("I%d = %.2f mA", ch, v) })
}

type info struct {
	Slot       string    `json:"slot"`
	Board      string    `json:"board"`
	Descriptor string    `json:"descriptor"`
	Valid      bool      `json:"valid"`
	Voltages   []float64 `json:"voltages"`
	Currents   []float64 `json:"currents"`
}

func (s *Shell) Info(_ []string) (string, error) {
	d := s.Module.Descriptor()
	in := info{
		Slot:       s.Module.Slot().String(),
		Board:      s.Module.Board().String(),
		Descriptor: d.String(),
		Valid:      d.Valid(),
	}
	for ch := analog.VoltageChannel(0); ch < analog.VoltageChannels; ch++ {
		in.Voltages = append(in.Voltages, s.Module.LastVoltage(ch))
	}
	for ch := analog.CurrentChannel(0); ch < analog.CurrentChannels; ch++ {
		in.Currents = append(in.Currents, s.Module.LastCurrent(ch))
	}
	return s.format(in, func() string {
		return fmt.Sprintf("%s on %s: %s\nvoltages %v V\ncurrents %v mA", in.Slot, in.Board, in.Descriptor, in.Voltages, in.Currents)
	})
}

func (s *Shell) format(v any, text func() string) (string, error) {
	if !s.OutputJSON {
		return text(), nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func channel(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one channel number")
	}
	ch, err := strconv.Atoi(args[0])
	if err != nil || ch < 0 {
		return 0, fmt.Errorf("invalid channel %q", args[0])
	}
	return ch, nil
}

// parseUints accepts decimal or 0x-prefixed values.
func parseUints(args []string, bits int) ([]uint64, error) {
	out := make([]uint64, len(args))
	for i, a := range args {
		n, err := strconv.ParseUint(a, 0, bits)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = n
	}
	return out, nil
}
