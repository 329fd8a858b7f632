package timesquare

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"

	"github.com/mwm/timesquare/bitplane"
)

// PortBus is the hardware access used by the refresh engine: three 8-bit
// GPIO ports carrying pixel data and eight column drive lines multiplexing
// the matrix.
//
// The engine goroutine is the only caller once the device is running, so
// implementations need no locking of their own to stay consistent with the
// refresh cycle; a WritePorts call must simply latch all three bytes before
// returning so a column is never enabled over half-updated data.
type PortBus interface {
	// WritePorts latches the raw values of ports B, C and D in one burst.
	WritePorts(b, c, d byte)

	// SetColumn switches a single column drive line. on means the column
	// sinks current and its row data becomes visible. Column lines are
	// active low on the real hardware; implementations hide the polarity.
	SetColumn(col int, on bool)
}

// Port bank indices for PinBus.
const (
	portB = iota
	portC
	portD
	numPorts
)

// Column drive lines, indexed by column: each is one bit of one port.
// Fixed by the board routing.
var columnPin = [bitplane.Height]struct {
	port int
	bit  uint
}{
	{portD, 6},
	{portB, 6},
	{portC, 1},
	{portB, 1},
	{portC, 0},
	{portB, 7},
	{portB, 3},
	{portD, 7},
}

// Pins the matrix actually needs, as bit masks per port. Mirrors the data
// direction setup of the original board: all of port B, the low nibble of
// port C, the high nibble of port D. The remaining bits (I2C pull-ups,
// button inputs) must stay unwired here.
var requiredPins = [numPorts]byte{0xFF, 0x0F, 0xF0}

// PinBus implements PortBus over individual periph.io output pins, one per
// wired port bit. It is the right backend for hosted boards where the matrix
// hangs off a GPIO expander or header rather than a memory-mapped port.
//
// Per-pin writes cannot match a real port latch for speed; pick a BaseUnit
// your GPIO backend can sustain.
type PinBus struct {
	pins [numPorts][8]gpio.PinOut
	last [numPorts]byte
	have bool
}

// NewPinBus builds a PinBus from three banks of pins, index = bit number.
// Entries for unwired bits must be nil; all bits the matrix uses must be
// provided.
func NewPinBus(b, c, d [8]gpio.PinOut) (*PinBus, error) {
	p := &PinBus{pins: [numPorts][8]gpio.PinOut{b, c, d}}
	names := [numPorts]string{"B", "C", "D"}
	for port := range p.pins {
		for bit := uint(0); bit < 8; bit++ {
			need := requiredPins[port]&(1<<bit) != 0
			wired := p.pins[port][bit] != nil
			if need && !wired {
				return nil, fmt.Errorf("timesquare: port %s bit %d is not wired", names[port], bit)
			}
			if !need && wired {
				return nil, fmt.Errorf("timesquare: port %s bit %d is reserved for other peripherals", names[port], bit)
			}
		}
	}
	return p, nil
}

// WritePorts drives every wired pin to the corresponding bit of its port
// byte. Unchanged bits are skipped after the first full write.
func (p *PinBus) WritePorts(b, c, d byte) {
	vals := [numPorts]byte{b, c, d}
	for port, v := range vals {
		diff := v ^ p.last[port]
		if p.have && diff == 0 {
			continue
		}
		for bit := uint(0); bit < 8; bit++ {
			pin := p.pins[port][bit]
			if pin == nil {
				continue
			}
			if !p.have || diff&(1<<bit) != 0 {
				// Out on an already-driven pin is cheap but not free.
				_ = pin.Out(gpio.Level(v&(1<<bit) != 0))
			}
		}
		p.last[port] = v
	}
	p.have = true
}

// SetColumn drives one column line; enabling pulls the line low.
func (p *PinBus) SetColumn(col int, on bool) {
	if col < 0 || col >= bitplane.Height {
		return
	}
	cp := columnPin[col]
	_ = p.pins[cp.port][cp.bit].Out(gpio.Level(!on))
	if on {
		p.last[cp.port] &^= 1 << cp.bit
	} else {
		p.last[cp.port] |= 1 << cp.bit
	}
}
