package bitplane

import (
	"image"
	"image/color"
)

// Matrix geometry. Fixed by the hardware: one 8x8 matrix, 8 bit-planes,
// three GPIO ports per scanned row.
const (
	Width  = 8
	Height = 8
	Planes = 8

	// PlaneStride is the byte distance between the same row in two
	// consecutive bit-planes: 8 rows times 3 port bytes.
	PlaneStride = Height * 3

	// BufferLen is the full buffer size: 192 bytes.
	BufferLen = Planes * PlaneStride
)

// A note on axes: 'row' here means a scanned line of the matrix, which the
// matrix datasheet calls a column. The matrix sits sideways in the watch, so
// the scanner's "column" index is the graphics y coordinate, and the eight
// pixels of each scanned line are spread over the three port bytes according
// to the mask tables below. Callers only ever see conventional x/y from the
// top left.

// Per-pixel drive bits for the three ports, indexed by x. Exactly one table
// has a non-zero entry for each x.
var (
	pixelMaskB = [Width]byte{0x00, 0x20, 0x00, 0x10, 0x04, 0x00, 0x01, 0x00}
	pixelMaskC = [Width]byte{0x00, 0x00, 0x08, 0x00, 0x00, 0x04, 0x00, 0x00}
	pixelMaskD = [Width]byte{0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x20}
)

// Off patterns for the three ports. Rows and columns have different idle
// polarities (anodes vs cathodes), and some bits keep unrelated peripherals
// alive: C4/C5 hold the I2C pull-ups, D2/D3 hold the button pull-ups. These
// bits are outside every pixel mask and must never change.
const (
	PortBOff byte = 0b11001010
	PortCOff byte = 0b00110011
	PortDOff byte = 0b11001100
)

// PixelMask returns the port B, C and D drive bits for the pixel at x.
// Out-of-range x returns zero masks.
func PixelMask(x int) (pb, pc, pd byte) {
	if x < 0 || x >= Width {
		return 0, 0, 0
	}
	return pixelMaskB[x], pixelMaskC[x], pixelMaskD[x]
}

// Buffer is one plane-packed frame: BufferLen bytes of raw port values.
type Buffer struct {
	Pix []byte
}

// NewBuffer allocates a Buffer with every pixel off and all shared port bits
// at their required idle state.
func NewBuffer() *Buffer {
	b := &Buffer{Pix: make([]byte, BufferLen)}
	for i := 0; i < BufferLen; i += 3 {
		b.Pix[i] = PortBOff
		b.Pix[i+1] = PortCOff
		b.Pix[i+2] = PortDOff
	}
	return b
}

// ColorModel returns color.GrayModel.
func (b *Buffer) ColorModel() color.Model {
	return color.GrayModel
}

// Bounds returns the fixed 8x8 bounds.
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}

// At returns the pixel at (x, y) as a color.Gray.
func (b *Buffer) At(x, y int) color.Color {
	return color.Gray{Y: b.GrayAt(x, y)}
}

// GrayAt returns the 8-bit intensity of the pixel at (x, y), reassembled
// from the eight bit-planes. Out-of-bounds coordinates return 0.
func (b *Buffer) GrayAt(x, y int) uint8 {
	if x < 0 || y < 0 || x >= Width || y >= Height {
		return 0
	}
	mb, mc, md := pixelMaskB[x], pixelMaskC[x], pixelMaskD[x]
	off := y * 3
	var v uint8
	for plane := 0; plane < Planes; plane++ {
		if b.Pix[off]&mb != 0 || b.Pix[off+1]&mc != 0 || b.Pix[off+2]&md != 0 {
			v |= 1 << plane
		}
		off += PlaneStride
	}
	return v
}

// Set sets the pixel at (x, y), converting c through color.GrayModel.
// It implements draw.Image.
func (b *Buffer) Set(x, y int, c color.Color) {
	b.SetGray(x, y, color.GrayModel.Convert(c).(color.Gray).Y)
}

// SetGray writes an 8-bit intensity at (x, y): bit k of level is stored in
// plane k, least significant first. Coordinates outside the matrix are
// ignored, matching the clipping behavior graphics code expects.
func (b *Buffer) SetGray(x, y int, level uint8) {
	if x < 0 || y < 0 || x >= Width || y >= Height {
		return
	}
	mb, mc, md := pixelMaskB[x], pixelMaskC[x], pixelMaskD[x]
	off := y * 3
	for bit := uint8(1); bit != 0; bit <<= 1 {
		if level&bit != 0 {
			b.Pix[off] |= mb
			b.Pix[off+1] |= mc
			b.Pix[off+2] |= md
		} else {
			b.Pix[off] &^= mb
			b.Pix[off+1] &^= mc
			b.Pix[off+2] &^= md
		}
		off += PlaneStride
	}
}

// PortBytes returns the three port values for one scanned row of one
// bit-plane. The refresh engine latches these verbatim.
func (b *Buffer) PortBytes(row, plane int) (pb, pc, pd byte) {
	off := row*3 + plane*PlaneStride
	return b.Pix[off], b.Pix[off+1], b.Pix[off+2]
}

// CopyFrom makes b byte-identical to src.
func (b *Buffer) CopyFrom(src *Buffer) {
	copy(b.Pix, src.Pix)
}
