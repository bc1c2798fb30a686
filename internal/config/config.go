// Package config loads the daemon configuration: defaults, then an optional
// YAML file named by CONFIG_FILE, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/tetragramaton/rak13015-go/internal/interface/analog"
	"github.com/tetragramaton/rak13015-go/internal/slot"
	"gopkg.in/yaml.v3"
)

// MaxReadCount is the largest register block one read holding registers
// request may ask for.
const MaxReadCount = 125

type Config struct {
	DeviceID    string `yaml:"device_id"`
	Model       string `yaml:"model"`
	Area        string `yaml:"area"`
	IntervalSec int    `yaml:"interval_sec"`

	Module ModuleConfig `yaml:"module"`
	Modbus ModbusConfig `yaml:"modbus"`
	Analog AnalogConfig `yaml:"analog"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
}

// ---- MODULE ----

type ModuleConfig struct {
	Slot string `yaml:"slot"`
	Base string `yaml:"base"`
}

// ---- MODBUS ----

type ModbusConfig struct {
	Baud      int            `yaml:"baud"`
	Ports     map[int]string `yaml:"ports"` // serial index -> device node
	RS485     bool           `yaml:"rs485"`
	SlaveID   uint8          `yaml:"slave_id"`
	Start     uint16         `yaml:"start"`
	Count     uint16         `yaml:"count"`
	TimeoutMs int            `yaml:"timeout_ms"`

	Registers []RegisterParam `yaml:"registers"`
}

// RegisterParam maps one register of the polled block to a published value:
// value = block[Index] / Scale.
type RegisterParam struct {
	Name  string  `yaml:"name"`
	Cap   string  `yaml:"cap"`
	Unit  string  `yaml:"unit"`
	Index int     `yaml:"index"`
	Scale float64 `yaml:"scale"`
}

// ---- ANALOG ----

type AnalogConfig struct {
	Enabled    bool    `yaml:"enabled"`
	I2CBus     string  `yaml:"i2c_bus"`
	Resolution float64 `yaml:"resolution"`
}

// ---- MQTT ----

type MQTTConfig struct {
	BrokerURL string `yaml:"url"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TLS       bool   `yaml:"tls"`
}

// Default returns the configuration of the reference setup: module in slot D
// of a RAK19007, a soil probe at slave 1 answering five registers.
func Default() Config {
	return Config{
		Model:       "RAK13015",
		Area:        "field",
		IntervalSec: 60,
		Module: ModuleConfig{
			Slot: "D",
			Base: "RAK19007",
		},
		Modbus: ModbusConfig{
			Baud: 9600,
			Ports: map[int]string{
				0: "/dev/ttyS0",
				1: "/dev/ttyS1",
				2: "/dev/ttyS2",
			},
			SlaveID:   1,
			Start:     0,
			Count:     5,
			TimeoutMs: 5000,
			Registers: []RegisterParam{
				{Name: "temperature", Cap: "sensor.temperature", Unit: "°C", Index: 1, Scale: 10},
				{Name: "conductivity", Cap: "sensor.conductivity", Unit: "mS/cm", Index: 3, Scale: 100},
			},
		},
		Analog: AnalogConfig{
			Enabled:    true,
			Resolution: 4.096,
		},
		MQTT: MQTTConfig{
			BrokerURL: "tcp://mqtt:1883",
		},
	}
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = defaultDeviceID()
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "rak13015-" + cfg.DeviceID
	}
	return cfg, cfg.Validate()
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.DeviceID = getEnvDefault("DEVICE_ID", c.DeviceID)
	c.Model = getEnvDefault("MODEL", c.Model)
	c.Area = getEnvDefault("AREA", c.Area)
	c.Module.Slot = getEnvDefault("RAK_SLOT", c.Module.Slot)
	c.Module.Base = getEnvDefault("RAK_BASE", c.Module.Base)
	c.Analog.I2CBus = getEnvDefault("ANALOG_I2C_BUS", c.Analog.I2CBus)
	c.MQTT.BrokerURL = getEnvDefault("MQTT_URL", c.MQTT.BrokerURL)
	c.MQTT.ClientID = getEnvDefault("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = getEnvDefault("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnvDefault("MQTT_PASSWORD", c.MQTT.Password)

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("MODBUS_SERIAL%d_PORT", i)
		if v := os.Getenv(key); v != "" {
			if c.Modbus.Ports == nil {
				c.Modbus.Ports = map[int]string{}
			}
			c.Modbus.Ports[i] = v
		}
	}

	var errs []error
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			*dst = b
		}
	}

	setInt("MODBUS_BAUD", &c.Modbus.Baud)
	setInt("MODBUS_TIMEOUT_MS", &c.Modbus.TimeoutMs)
	setInt("INTERVAL_SEC", &c.IntervalSec)
	setBool("MODBUS_RS485", &c.Modbus.RS485)
	setBool("MQTT_TLS", &c.MQTT.TLS)

	setUint := func(key string, bits int, set func(uint64)) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseUint(v, 10, bits)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			set(n)
		}
	}
	setUint("MODBUS_SLAVE_ID", 8, func(n uint64) { c.Modbus.SlaveID = uint8(n) })
	setUint("MODBUS_START", 16, func(n uint64) { c.Modbus.Start = uint16(n) })
	setUint("MODBUS_COUNT", 16, func(n uint64) { c.Modbus.Count = uint16(n) })

	if v := os.Getenv("ANALOG_RESOLUTION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid ANALOG_RESOLUTION %q: %w", v, err))
		} else {
			c.Analog.Resolution = f
		}
	}
	return errors.Join(errs...)
}

// Validate checks every field the daemon parses later, so a bad value fails
// at start-up rather than on the first cycle.
func (c Config) Validate() error {
	var errs []error
	if _, err := slot.ParseSlot(c.Module.Slot); err != nil {
		errs = append(errs, err)
	}
	if _, err := slot.ParseBoard(c.Module.Base); err != nil {
		errs = append(errs, err)
	}
	if _, err := analog.ParseResolution(c.Analog.Resolution); err != nil {
		errs = append(errs, err)
	}
	if c.Modbus.Baud <= 0 {
		errs = append(errs, fmt.Errorf("invalid modbus baud %d", c.Modbus.Baud))
	}
	if c.Modbus.Count == 0 || c.Modbus.Count > MaxReadCount {
		errs = append(errs, fmt.Errorf("invalid modbus count %d (1-%d)", c.Modbus.Count, MaxReadCount))
	}
	if c.Modbus.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("invalid modbus timeout %dms", c.Modbus.TimeoutMs))
	}
	if c.IntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("invalid interval %ds", c.IntervalSec))
	}
	for _, r := range c.Modbus.Registers {
		if r.Index < 0 || r.Index >= int(c.Modbus.Count) {
			errs = append(errs, fmt.Errorf("register %q: index %d outside block of %d", r.Name, r.Index, c.Modbus.Count))
		}
		if r.Scale == 0 {
			errs = append(errs, fmt.Errorf("register %q: zero scale", r.Name))
		}
	}
	if c.MQTT.BrokerURL == "" {
		errs = append(errs, errors.New("missing MQTT_URL"))
	}
	return errors.Join(errs...)
}

// Slot returns the validated slot. Call after Validate.
func (c Config) Slot() slot.Slot {
	s, _ := slot.ParseSlot(c.Module.Slot)
	return s
}

func (c Config) Board() slot.Board {
	b, _ := slot.ParseBoard(c.Module.Base)
	return b
}

func (c Config) Resolution() analog.Resolution {
	r, _ := analog.ParseResolution(c.Analog.Resolution)
	return r
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.Modbus.TimeoutMs) * time.Millisecond
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultDeviceID() string {
	id, err := machineid.ProtectedID("rak13015")
	if err != nil || id == "" {
		host, _ := os.Hostname()
		return "rak13015." + strings.ToLower(host)
	}
	return "rak13015." + id[:12]
}
