//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/tetragramaton/rak13015-go/internal/client/mqtt"
	"github.com/tetragramaton/rak13015-go/internal/config"
	mqttIface "github.com/tetragramaton/rak13015-go/internal/interface/mqtt"
)

type MainHandler struct {
	MQTTClient mqttIface.Client
}

func NewMainHandler(
	mqttClient mqttIface.Client,
) *MainHandler {
	return &MainHandler{
		MQTTClient: mqttClient,
	}
}

func InitMainHandler() (*MainHandler, error) {
	wire.Build(
		NewMainHandler,
		ProvideMQTTConfig,
		mqtt.NewClient,
	)
	return nil, nil // wire will generate the result
}

func ProvideMQTTConfig() (config.MQTTConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.MQTTConfig{}, err
	}
	cfg.MQTT.ClientID = "rak13015-core-" + cfg.DeviceID
	return cfg.MQTT, nil
}
