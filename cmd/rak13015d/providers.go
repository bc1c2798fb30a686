package main

import (
	"github.com/golang/glog"
	"github.com/tetragramaton/rak13015-go/internal/bus"
	clientAnalog "github.com/tetragramaton/rak13015-go/internal/client/analog"
	clientModbus "github.com/tetragramaton/rak13015-go/internal/client/modbus"
	"github.com/tetragramaton/rak13015-go/internal/client/mqtt"
	"github.com/tetragramaton/rak13015-go/internal/config"
	"github.com/tetragramaton/rak13015-go/internal/driver"
	"github.com/tetragramaton/rak13015-go/internal/interface/analog"
	modbusIface "github.com/tetragramaton/rak13015-go/internal/interface/modbus"
	mqttIface "github.com/tetragramaton/rak13015-go/internal/interface/mqtt"
)

func ProvideMaster() modbusIface.Master {
	return clientModbus.NewMaster()
}

func ProvideSession(cfg config.Config, master modbusIface.Master) (*bus.Session, func()) {
	s := bus.NewSession(master, bus.Ports(cfg.Modbus.Ports), bus.WithRS485(cfg.Modbus.RS485))
	return s, func() {
		if err := s.Close(); err != nil {
			glog.Warningf("modbus close: %v", err)
		}
	}
}

// ProvideFrontEnd opens the I2C bus when the analog side is enabled; a nil
// front end leaves the module in Modbus-only mode.
func ProvideFrontEnd(cfg config.Config) (analog.FrontEnd, func(), error) {
	if !cfg.Analog.Enabled {
		return nil, func() {}, nil
	}
	fe, closer, err := clientAnalog.Open(cfg.Analog.I2CBus)
	if err != nil {
		return nil, nil, err
	}
	return fe, func() {
		if err := closer.Close(); err != nil {
			glog.Warningf("i2c close: %v", err)
		}
	}, nil
}

func ProvideDriver(cfg config.Config, session driver.Bus, fe analog.FrontEnd) *driver.Driver {
	return driver.New(cfg.Slot(), cfg.Board(), session, fe)
}

func ProvideMqttClient(cfg config.Config) (mqttIface.Client, func(), error) {
	c, err := mqtt.NewClient(cfg.MQTT)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close(250) }, nil
}
