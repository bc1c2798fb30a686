// Command rak13015-cli is an interactive shell for bench testing a module.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/tetragramaton/rak13015-go/internal/bus"
	clientAnalog "github.com/tetragramaton/rak13015-go/internal/client/analog"
	clientModbus "github.com/tetragramaton/rak13015-go/internal/client/modbus"
	"github.com/tetragramaton/rak13015-go/internal/cli"
	"github.com/tetragramaton/rak13015-go/internal/config"
	"github.com/tetragramaton/rak13015-go/internal/driver"
	"github.com/tetragramaton/rak13015-go/internal/interface/analog"
)

var (
	evalOnly   bool
	outputJSON bool
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluate the command given as arguments, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

func main() {
	flag.Parse()
	err := run(flag.Args())
	if err != nil {
		glog.Errorf("%v", err)
	}
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

// run returns instead of exiting so the transports are released first.
func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	session := bus.NewSession(clientModbus.NewMaster(), bus.Ports(cfg.Modbus.Ports), bus.WithRS485(cfg.Modbus.RS485))
	defer session.Close()

	var fe analog.FrontEnd
	if cfg.Analog.Enabled {
		frontEnd, closer, err := clientAnalog.Open(cfg.Analog.I2CBus)
		if err != nil {
			glog.Warningf("analog unavailable: %v", err)
		} else {
			defer closer.Close()
			fe = frontEnd
		}
	}

	sh := cli.New(driver.New(cfg.Slot(), cfg.Board(), session, fe), cfg)
	sh.OutputJSON = outputJSON

	if evalOnly || len(args) > 0 {
		if err := sh.Shell.Process(args...); err != nil {
			return fmt.Errorf("%s: %w", strings.Join(args, " "), err)
		}
		return nil
	}
	sh.Shell.Run()
	return nil
}
