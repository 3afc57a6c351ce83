package relay

import "strconv"

// MaxPeripherals is the fixed upper bound on wirelessly attached peripherals.
const MaxPeripherals = 8

// Source identifies the node a settings value originated from.
//
// Self is a sentinel meaning "originated on the node currently evaluating this
// value". It must never cross a node boundary: the relay fabric rewrites it to
// the node's concrete index before transmission. A Self value observed by a
// listener therefore always refers to the local node's own event.
type Source uint8

const (
	// Central is the index of the central node.
	Central Source = 0

	// Self marks a locally raised, not yet relayed event.
	Self Source = 0xFF
)

// Peripheral returns the Source for the i-th peripheral (1-based).
func Peripheral(i uint8) Source {
	return Source(i)
}

// IsPeripheral reports whether s is a concrete peripheral index.
func (s Source) IsPeripheral() bool {
	return s >= 1 && s <= MaxPeripherals
}

// Valid reports whether s is Self, Central, or a peripheral index within the
// fixed bound.
func (s Source) Valid() bool {
	return s == Self || s == Central || s.IsPeripheral()
}

func (s Source) String() string {
	switch {
	case s == Self:
		return "self"
	case s == Central:
		return "central"
	case s.IsPeripheral():
		return "peripheral-" + strconv.Itoa(int(s))
	default:
		return "invalid-" + strconv.Itoa(int(s))
	}
}
