//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/tetragramaton/rak13015-go/internal/bus"
	"github.com/tetragramaton/rak13015-go/internal/config"
	"github.com/tetragramaton/rak13015-go/internal/driver"
	mqttIface "github.com/tetragramaton/rak13015-go/internal/interface/mqtt"
)

type MainHandler struct {
	Config     config.Config
	Driver     *driver.Driver
	MQTTClient mqttIface.Client
}

func NewMainHandler(
	cfg config.Config,
	drv *driver.Driver,
	mqttClient mqttIface.Client,
) *MainHandler {
	return &MainHandler{
		Config:     cfg,
		Driver:     drv,
		MQTTClient: mqttClient,
	}
}

func InitMainHandler() (*MainHandler, func(), error) {
	wire.Build(
		NewMainHandler,
		config.Load,
		ProvideMaster,
		ProvideSession,
		ProvideFrontEnd,
		ProvideDriver,
		ProvideMqttClient,
		wire.Bind(new(driver.Bus), new(*bus.Session)),
	)
	return nil, nil, nil // wire will generate the result
}
