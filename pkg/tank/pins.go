package tank

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/robotalks/tank.go/pkg/l0/comm"
)

// Pins wired on the tank board.
// Relays are low trigger: driving the pin low engages the relay.
const (
	PinBoardLED       uint8 = 13
	PinRelayHeater    uint8 = 43
	PinRelayPurifier2 uint8 = 44
	PinRelayPurifier1 uint8 = 45
	PinRelayLight     uint8 = 46
	PinRelayPump      uint8 = 47
	PinRelayInWater   uint8 = 48
	PinRelayOutWater  uint8 = 49
)

// PinNames maps names accepted by LookupPin.
var PinNames = map[string]uint8{
	"led":       PinBoardLED,
	"heater":    PinRelayHeater,
	"purifier2": PinRelayPurifier2,
	"purifier1": PinRelayPurifier1,
	"light":     PinRelayLight,
	"pump":      PinRelayPump,
	"in-water":  PinRelayInWater,
	"out-water": PinRelayOutWater,
}

// LookupPin resolves a pin from a name in PinNames or a number.
func LookupPin(s string) (uint8, error) {
	if pin, ok := PinNames[strings.ToLower(s)]; ok {
		return pin, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown pin %q", s)
	}
	if n >= comm.PinCount {
		return 0, fmt.Errorf("%w %d", ErrInvalidPin, n)
	}
	return uint8(n), nil
}

// SortedPinNames returns names of PinNames in order.
func SortedPinNames() []string {
	names := make([]string, 0, len(PinNames))
	for name := range PinNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
