package slot

import (
	"fmt"
	"strings"
)

// Slot is a connector position on a WisBlock base board.
type Slot uint8

const (
	SlotA Slot = iota
	SlotB
	SlotC
	SlotD
	SlotE
	SlotF
)

// Board is the base board model carrying the module.
type Board uint8

const (
	RAK19007 Board = iota
	RAK19003
	RAK19001
)

// Pin is a GPIO number on the RAK4631 core. PinNone marks an unavailable pin.
type Pin int

const PinNone Pin = -1

// WisBlock IO pins as routed on the RAK4631 core module.
const (
	IO1 Pin = 17
	IO2 Pin = 34
	IO3 Pin = 21
	IO4 Pin = 4
	IO5 Pin = 9
	IO6 Pin = 10
)

// SerialNone is the serial index reported by an invalid descriptor.
const SerialNone = -1

// Descriptor is the set of board resources bound to one slot.
type Descriptor struct {
	Alert   Pin `json:"alert_pin" yaml:"alert_pin"`
	Control Pin `json:"control_pin" yaml:"control_pin"`
	Serial  int `json:"serial" yaml:"serial"`
}

// Invalid is returned for every unsupported slot/board combination.
var Invalid = Descriptor{Alert: PinNone, Control: PinNone, Serial: SerialNone}

// Valid reports whether both pins are usable.
func (d Descriptor) Valid() bool {
	return d.Alert != PinNone && d.Control != PinNone
}

func (d Descriptor) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return fmt.Sprintf("alert=%d control=%d serial=%d", d.Alert, d.Control, d.Serial)
}

type entry struct {
	slot  Slot
	board Board
	desc  Descriptor
}

// Slots A and B share WB_IO2 with the 3V3_S power switch and are never listed.
var table = []entry{
	{SlotC, RAK19003, Descriptor{Alert: IO4, Control: IO3, Serial: 1}},
	{SlotD, RAK19007, Descriptor{Alert: IO6, Control: IO5, Serial: 1}},
	{SlotD, RAK19003, Descriptor{Alert: IO6, Control: IO5, Serial: 1}},
	{SlotD, RAK19001, Descriptor{Alert: IO6, Control: IO5, Serial: 2}},
	{SlotE, RAK19001, Descriptor{Alert: IO4, Control: IO3, Serial: 2}},
	{SlotF, RAK19001, Descriptor{Alert: IO5, Control: IO6, Serial: 1}},
}

// Resolve maps a slot on a base board to its resources.
// Combinations missing from the table resolve to Invalid.
func Resolve(s Slot, b Board) Descriptor {
	for _, e := range table {
		if e.slot == s && e.board == b {
			return e.desc
		}
	}
	return Invalid
}

var slotNames = []string{"A", "B", "C", "D", "E", "F"}

func (s Slot) String() string {
	if int(s) < len(slotNames) {
		return "SLOT_" + slotNames[s]
	}
	return fmt.Sprintf("SLOT(%d)", uint8(s))
}

// ParseSlot accepts "D", "d" or "SLOT_D".
func ParseSlot(v string) (Slot, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(v)), "SLOT_")
	for i, n := range slotNames {
		if n == name {
			return Slot(i), nil
		}
	}
	return 0, fmt.Errorf("unknown slot %q", v)
}

var boardNames = []string{"RAK19007", "RAK19003", "RAK19001"}

func (b Board) String() string {
	if int(b) < len(boardNames) {
		return boardNames[b]
	}
	return fmt.Sprintf("BOARD(%d)", uint8(b))
}

// ParseBoard accepts the base board model name, case-insensitive.
func ParseBoard(v string) (Board, error) {
	name := strings.ToUpper(strings.TrimSpace(v))
	for i, n := range boardNames {
		if n == name {
			return Board(i), nil
		}
	}
	return 0, fmt.Errorf("unknown base board %q", v)
}
