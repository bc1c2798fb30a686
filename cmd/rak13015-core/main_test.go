package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_InitErrorIsReturned(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DEVICE_ID", "core")
	t.Setenv("MODBUS_COUNT", "0")

	err := run()
	require.ErrorContains(t, err, "init")
	require.ErrorContains(t, err, "invalid modbus count 0")
}
