package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetragramaton/rak13015-go/internal/bus"
	"github.com/tetragramaton/rak13015-go/internal/config"
	"github.com/tetragramaton/rak13015-go/internal/slot"
)

func TestProvideFrontEnd_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Analog.Enabled = false
	fe, cleanup, err := ProvideFrontEnd(cfg)
	require.NoError(t, err)
	require.Nil(t, fe)
	cleanup()
}

func TestProvideDriver_ResolvesConfiguredSlot(t *testing.T) {
	cfg := config.Default()
	cfg.Module.Slot = "E"
	cfg.Module.Base = "RAK19001"

	session, cleanup := ProvideSession(cfg, ProvideMaster())
	defer cleanup()
	drv := ProvideDriver(cfg, session, nil)
	require.Equal(t, slot.Descriptor{Alert: slot.IO4, Control: slot.IO3, Serial: 2}, drv.Descriptor())

	// an unbound session fails fast
	require.ErrorIs(t, drv.RequestModbus(1, 0, 1, make([]uint16, 1), 0), bus.ErrNotInitialized)
}
