// Package bustest provides PortBus implementations that run without
// hardware, in the spirit of periph.io's gpiotest and conntest packages.
//
// Record logs every bus operation for assertions about scan order and burst
// contents. Matrix goes further and plays the part of the LED matrix itself:
// it watches the scan protocol, weights each column's data by its bit-plane
// exposure and reconstructs the greyscale frame a viewer would perceive.
package bustest

import (
	"image"
	"sync"

	"github.com/mwm/timesquare/bitplane"
)

// OpType discriminates recorded bus operations.
type OpType uint8

const (
	// OpWrite is a WritePorts burst.
	OpWrite OpType = iota
	// OpColumn is a SetColumn call.
	OpColumn
)

// Op is one recorded bus operation.
type Op struct {
	Type    OpType
	B, C, D byte // OpWrite
	Col     int  // OpColumn
	On      bool // OpColumn
}

// Record implements timesquare.PortBus and stores every operation.
type Record struct {
	mu  sync.Mutex
	Ops []Op
}

// WritePorts implements PortBus.
func (r *Record) WritePorts(b, c, d byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, Op{Type: OpWrite, B: b, C: c, D: d})
}

// SetColumn implements PortBus.
func (r *Record) SetColumn(col int, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, Op{Type: OpColumn, Col: col, On: on})
}

// Reset discards all recorded operations.
func (r *Record) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = nil
}

// Snapshot returns a copy of the operations recorded so far.
func (r *Record) Snapshot() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]Op, len(r.Ops))
	copy(ops, r.Ops)
	return ops
}

// Matrix implements timesquare.PortBus and reconstructs full greyscale
// frames from the scan protocol. It synchronizes on the fixed scan order:
// a new plane starts whenever column 0 is enabled, and a frame completes
// after eight planes.
type Matrix struct {
	mu      sync.Mutex
	pending [3]byte // last burst, not yet attributed to a column
	plane   int     // -1 until the first plane boundary is seen
	acc     [bitplane.Height][bitplane.Width]int
	frame   [bitplane.Height][bitplane.Width]uint8
	frames  int
}

// NewMatrix returns a Matrix waiting for the first plane boundary.
func NewMatrix() *Matrix {
	return &Matrix{plane: -1}
}

// WritePorts implements PortBus; the burst is attributed to the column
// enabled right after it.
func (m *Matrix) WritePorts(b, c, d byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = [3]byte{b, c, d}
}

// SetColumn implements PortBus.
func (m *Matrix) SetColumn(col int, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !on || col < 0 || col >= bitplane.Height {
		return
	}
	if col == 0 {
		m.plane++
		if m.plane >= bitplane.Planes {
			for y := range m.acc {
				for x, v := range m.acc[y] {
					m.frame[y][x] = uint8(v)
					m.acc[y][x] = 0
				}
			}
			m.frames++
			m.plane = 0
		}
	}
	if m.plane < 0 {
		return // partial plane before first sync point
	}
	for x := 0; x < bitplane.Width; x++ {
		pb, pc, pd := bitplane.PixelMask(x)
		if m.pending[0]&pb != 0 || m.pending[1]&pc != 0 || m.pending[2]&pd != 0 {
			m.acc[col][x] += 1 << m.plane
		}
	}
}

// Frames returns the number of completed frames observed.
func (m *Matrix) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Frame returns the last completed frame as a grayscale image. It is zero
// until a full 8-plane cycle has been observed.
func (m *Matrix) Frame() *image.Gray {
	m.mu.Lock()
	defer m.mu.Unlock()
	img := image.NewGray(image.Rect(0, 0, bitplane.Width, bitplane.Height))
	for y := range m.frame {
		for x, v := range m.frame[y] {
			img.Pix[y*img.Stride+x] = v
		}
	}
	return img
}
