package measure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tetragramaton/rak13015-go/internal/bus"
	"github.com/tetragramaton/rak13015-go/internal/config"
	"github.com/tetragramaton/rak13015-go/internal/ha"
	"github.com/tetragramaton/rak13015-go/internal/interface/analog"
	mqttIface "github.com/tetragramaton/rak13015-go/internal/interface/mqtt"
)

type fakeModule struct {
	currents  [analog.CurrentChannels]float64
	voltages  [analog.VoltageChannels]float64
	registers []uint16
	analogErr error
	modbusErr error

	requests []time.Duration
}

func (m *fakeModule) ReadVoltage(ch analog.VoltageChannel) (float64, error) {
	return m.voltages[ch], m.analogErr
}

func (m *fakeModule) ReadCurrentLoop(ch analog.CurrentChannel) (float64, error) {
	return m.currents[ch], m.analogErr
}

func (m *fakeModule) RequestModbus(_ byte, start, count uint16, buf []uint16, timeout time.Duration) error {
	m.requests = append(m.requests, timeout)
	if m.modbusErr != nil {
		return m.modbusErr
	}
	copy(buf[:count], m.registers[start:])
	return nil
}

type recorder struct{ msgs []mqttIface.Message }

func (r *recorder) PublishEvent(m mqttIface.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) states(t *testing.T) map[string]SensorState {
	t.Helper()
	out := map[string]SensorState{}
	for _, m := range r.msgs {
		var s SensorState
		require.NoError(t, json.Unmarshal(m.Payload, &s))
		out[s.Cap] = s
	}
	return out
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.DeviceID = "soil.1"
	return cfg
}

func TestRunOnce_PublishesEveryValue(t *testing.T) {
	m := &fakeModule{
		currents:  [3]float64{4.0, 12.346, 20.0},
		voltages:  [2]float64{0.5, 9.999},
		registers: []uint16{0, 235, 0, 1234, 0},
	}
	r := &recorder{}
	c := NewCycle(m, r, testConfig())

	n, err := c.RunOnce(1700000000)
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.Equal(t, []time.Duration{5 * time.Second}, m.requests)

	states := r.states(t)
	require.Equal(t, 12.35, *states["current.i1"].Value)
	require.Equal(t, "mA", states["current.i1"].Unit)
	require.Equal(t, 10.0, *states["voltage.v1"].Value)
	require.Equal(t, 23.5, *states["sensor.temperature"].Value)
	require.Equal(t, 12.34, *states["sensor.conductivity"].Value)
	require.Equal(t, int64(1700000000), states["sensor.temperature"].Ts)

	for _, msg := range r.msgs {
		require.Equal(t, "rak13015/soil.1/state", msg.Topic)
		require.False(t, msg.Retain)
	}
}

func TestRunOnce_PartialFailure(t *testing.T) {
	m := &fakeModule{
		analogErr: errors.New("nack"),
		modbusErr: bus.ErrTimeout,
	}
	r := &recorder{}
	c := NewCycle(m, r, testConfig())

	n, err := c.RunOnce(1)
	require.Zero(t, n)
	require.ErrorIs(t, err, bus.ErrTimeout)
	require.Empty(t, r.msgs)
}

func TestRunOnce_AnalogDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Analog.Enabled = false
	m := &fakeModule{registers: []uint16{0, 100, 0, 100, 0}, analogErr: errors.New("must not be read")}
	r := &recorder{}

	n, err := NewCycle(m, r, cfg).RunOnce(1)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestAnnounce(t *testing.T) {
	r := &recorder{}
	c := NewCycle(&fakeModule{}, r, testConfig())
	require.NoError(t, c.Announce())
	require.Len(t, r.msgs, 1)
	require.Equal(t, ha.MetaTopic("soil.1"), r.msgs[0].Topic)
	require.True(t, r.msgs[0].Retain)

	var meta ha.Meta
	require.NoError(t, json.Unmarshal(r.msgs[0].Payload, &meta))
	require.Equal(t, []string{
		"current.i0", "current.i1", "current.i2",
		"voltage.v0", "voltage.v1",
		"sensor.temperature", "sensor.conductivity",
	}, meta.Caps)
	require.Equal(t, "mS/cm", meta.Units["sensor.conductivity"])
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, NewCycle(&fakeModule{}, r, cfg).Run(ctx), context.Canceled)
	require.Len(t, r.msgs, 1)
}
