// Command rak13015-core turns device meta announcements into Home Assistant
// discovery configs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mq "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/tetragramaton/rak13015-go/internal/ha"
	"github.com/tetragramaton/rak13015-go/internal/interface/mqtt"
)

func main() {
	flag.Parse()
	err := run()
	if err != nil {
		glog.Errorf("%v", err)
	}
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

// run returns instead of exiting so the broker connection is closed first.
func run() error {
	handler, err := InitMainHandler()
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer handler.MQTTClient.Close(250)

	if err := handler.Handle(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	glog.Info("rak13015-core up; waiting for meta...")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func (h *MainHandler) Handle() error {
	return h.MQTTClient.SubscribeToTopic(mqtt.Subscription{
		Topic:    ha.MetaFilter,
		QoS:      1,
		Callback: h.onMeta,
	})
}

func (h *MainHandler) onMeta(_ mq.Client, m mq.Message) {
	var meta ha.Meta
	if err := json.Unmarshal(m.Payload(), &meta); err != nil {
		glog.Warningf("bad meta on %s: %v", m.Topic(), err)
		return
	}
	if err := ha.PublishDiscovery(h.MQTTClient, meta); err != nil {
		glog.Errorf("discovery: %v", err)
	}
}
