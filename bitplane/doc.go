// Package bitplane provides the native frame buffer format of the 8x8 LED
// matrix watch: 8-bit greyscale stored as eight stacked 1-bit planes of raw
// GPIO port bytes.
//
// The matrix has no greyscale hardware. Brightness is reconstructed by the
// refresh engine through bit angle modulation: plane k is shown for a time
// window proportional to 2^k, so a pixel whose intensity has bit k set is lit
// during that window. Summed over all eight planes, the visible brightness is
// exactly the 8-bit intensity value.
//
// Memory layout: plane p of row y occupies 3 consecutive bytes at offset
// y*3 + p*24. The three bytes are the literal values for GPIO ports B, C and
// D, ready to be latched by the scanner without any per-tick translation.
// A set bit inside a pixel mask means "lit during this plane's window".
//
// Bits outside the pixel masks belong to unrelated peripherals (I2C pull-ups
// on port C, button pull-ups on port D) and are held at the fixed off
// patterns at all times. NewBuffer initializes them and SetGray never touches
// them.
//
// Buffer implements image.Image and draw.Image with color.GrayModel, so
// standard drawing code works directly:
//
//	buf := bitplane.NewBuffer()
//	buf.SetGray(3, 5, 200)
//	draw.Draw(buf, buf.Bounds(), src, image.Point{}, draw.Src)
package bitplane
