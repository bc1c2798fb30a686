package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/tetragramaton/rak13015-go/internal/config"
	mqttIface "github.com/tetragramaton/rak13015-go/internal/interface/mqtt"
)

const (
	connectWait = 10 * time.Second
	publishWait = 5 * time.Second
)

var ErrPublishTimeout = errors.New("mqtt: publish not acknowledged in time")

type mqttClient struct {
	mqttIface.API
}

// Options translates the broker settings into paho client options.
func Options(cfg config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetPingTimeout(3 * time.Second).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			glog.Warningf("mqtt: connection lost: %v", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}
	return opts
}

func NewClient(cfg config.MQTTConfig) (mqttIface.Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("missing MQTT_URL")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("missing MQTT_CLIENT_ID")
	}

	client := mqtt.NewClient(Options(cfg))
	t := client.Connect()
	if ok := t.WaitTimeout(connectWait); !ok {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.BrokerURL)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.BrokerURL, err)
	}
	glog.Infof("mqtt: connected to %s as %s", cfg.BrokerURL, cfg.ClientID)
	return Wrap(client), nil
}

// Wrap adapts a connected paho client.
func Wrap(api mqttIface.API) mqttIface.Client {
	return &mqttClient{API: api}
}

func (c *mqttClient) PublishEvent(message mqttIface.Message) error {
	t := c.API.Publish(message.Topic, message.QoS, message.Retain, message.Payload)
	if !t.WaitTimeout(publishWait) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, message.Topic)
	}
	return t.Error()
}

func (c *mqttClient) SubscribeToTopic(sub mqttIface.Subscription) error {
	t := c.API.Subscribe(sub.Topic, sub.QoS, sub.Callback)
	t.Wait()
	return t.Error()
}

func (c *mqttClient) Close(quiesce uint) error {
	if c.IsConnectionOpen() {
		c.Disconnect(quiesce)
	}
	return nil
}
