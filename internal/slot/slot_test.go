package slot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var boards = []Board{RAK19007, RAK19003, RAK19001}

func TestResolve_SlotsAAndBAlwaysInvalid(t *testing.T) {
	for _, s := range []Slot{SlotA, SlotB} {
		for _, b := range boards {
			d := Resolve(s, b)
			require.False(t, d.Valid(), "%s on %s", s, b)
			require.Equal(t, Invalid, d)
		}
	}
}

func TestResolve_SlotCOnlyOnRAK19003(t *testing.T) {
	require.Equal(t, Invalid, Resolve(SlotC, RAK19007))
	require.Equal(t, Invalid, Resolve(SlotC, RAK19001))

	d := Resolve(SlotC, RAK19003)
	require.True(t, d.Valid())
	require.Equal(t, 1, d.Serial)
	require.Equal(t, IO4, d.Alert)
	require.Equal(t, IO3, d.Control)
}

func TestResolve_SlotDSerialSplit(t *testing.T) {
	for _, b := range boards {
		require.True(t, Resolve(SlotD, b).Valid(), "slot D on %s", b)
	}
	require.Equal(t, 1, Resolve(SlotD, RAK19007).Serial)
	require.Equal(t, 1, Resolve(SlotD, RAK19003).Serial)
	require.Equal(t, 2, Resolve(SlotD, RAK19001).Serial)
	require.NotEqual(t, Resolve(SlotD, RAK19001).Serial, Resolve(SlotD, RAK19007).Serial)
}

func TestResolve_SlotsEAndFOnlyOnRAK19001(t *testing.T) {
	for _, s := range []Slot{SlotE, SlotF} {
		require.Equal(t, Invalid, Resolve(s, RAK19007))
		require.Equal(t, Invalid, Resolve(s, RAK19003))
		require.True(t, Resolve(s, RAK19001).Valid())
	}
	require.Equal(t, 2, Resolve(SlotE, RAK19001).Serial)
	require.Equal(t, 1, Resolve(SlotF, RAK19001).Serial)
}

func TestResolve_UnknownValuesFallThrough(t *testing.T) {
	require.Equal(t, Invalid, Resolve(Slot(9), RAK19007))
	require.Equal(t, Invalid, Resolve(SlotD, Board(7)))
}

func TestResolve_ValidDescriptorsHaveUsablePins(t *testing.T) {
	for _, e := range table {
		d := Resolve(e.slot, e.board)
		require.GreaterOrEqual(t, int(d.Alert), 0)
		require.GreaterOrEqual(t, int(d.Control), 0)
		require.Contains(t, []int{0, 1, 2}, d.Serial)
	}
}

func TestParseSlotAndBoard(t *testing.T) {
	s, err := ParseSlot("slot_d")
	require.NoError(t, err)
	require.Equal(t, SlotD, s)

	s, err = ParseSlot(" F ")
	require.NoError(t, err)
	require.Equal(t, SlotF, s)

	_, err = ParseSlot("G")
	require.Error(t, err)

	b, err := ParseBoard("rak19001")
	require.NoError(t, err)
	require.Equal(t, RAK19001, b)

	_, err = ParseBoard("RAK19010")
	require.Error(t, err)
}
