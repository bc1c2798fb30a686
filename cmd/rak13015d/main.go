package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/tetragramaton/rak13015-go/internal/measure"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	handler, cleanup, err := InitMainHandler()
	if err != nil {
		glog.Exitf("init: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := handler.Handle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		glog.Errorf("run: %v", err)
	}
}

// Handle brings up the module and runs the measurement cycle until ctx ends.
func (h *MainHandler) Handle(ctx context.Context) error {
	cfg := h.Config
	glog.Infof("rak13015d: %s in %s of %s (%s)", cfg.DeviceID, h.Driver.Slot(), h.Driver.Board(), h.Driver.Descriptor())

	if err := h.Driver.InitModbus(cfg.Modbus.Baud); err != nil {
		return err
	}
	if cfg.Analog.Enabled {
		if err := h.Driver.InitAnalog(cfg.Resolution()); err != nil {
			glog.Warningf("analog disabled: %v", err)
			cfg.Analog.Enabled = false
		}
	}

	return measure.NewCycle(h.Driver, h.MQTTClient, cfg).Run(ctx)
}
