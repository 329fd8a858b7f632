// Package timesquare drives an 8x8 monochrome LED matrix watch display,
// multiplexed directly from GPIO, together with its two pushbuttons.
//
// The matrix has one LED per pixel and no controller chip: greyscale exists
// only because the refresh engine re-scans the matrix continuously, showing
// each of eight bit-planes for a window proportional to its significance
// (bit angle modulation). Plane k is lit for BaseUnit << k, so eight planes
// yield 256 brightness levels and a full frame takes BaseUnit * 255 * 8 —
// about 65 frames per second at the default timing.
//
// # Display pipeline
//
// Drawing goes through a double buffer. The foreground writes the back
// buffer (SetPixel, or any image/draw code via Draw), then calls SwapBuffers
// to publish the frame. The refresh engine honors the swap only at the end
// of a complete 8-plane cycle, so the visible frame is always entirely one
// buffer, never a mix:
//
//	bus, _ := timesquare.NewPinBus(portB, portC, portD)
//	dev, err := timesquare.New(bus, &timesquare.Opts{DoubleBuffered: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := dev.Begin(); err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Halt()
//
//	for i := 0; i < 8; i++ {
//		dev.SetPixel(i, i, uint8(i*36))
//	}
//	dev.SwapBuffers(false)
//	dev.DelayFrames(65)
//
// SwapBuffers blocks for up to one frame period while the engine reaches the
// swap point. With copyForward set, the new back buffer is made identical to
// the new front buffer afterwards, so incremental animation only needs to
// redraw what changed.
//
// The pixel format lives in the bitplane subpackage: raw port bytes, eight
// stacked 1-bit planes, ready for the scanner to latch without translation.
// Dev implements periph.io's display.Drawer, and the back buffer is a
// standard draw.Image, so ordinary graphics and text code plugs in directly.
//
// # Timing
//
// The refresh tick is the hard real-time core. Each tick blanks the active
// column, latches three port bytes for the next column in a fixed
// interleaved scan order, and re-enables the drive line; the interval to the
// next tick follows the bit-angle-modulation law. Anything that delays a
// tick shows up immediately as brightness distortion. There is no detection
// or recovery: keep work on the refresh goroutine's machine short, exactly
// as the original firmware demanded of its interrupt handlers.
//
// # Buttons
//
// The two buttons share a debounce/hold state machine fed by pin edges and a
// slow hold timer. It condenses noisy line transitions into six semantic
// actions: tap or hold of either button, plus hold-both. One action at a
// time is held pending; Action returns and clears it:
//
//	switch dev.Action() {
//	case timesquare.ActionTapLeft:
//		// next display mode
//	case timesquare.ActionHoldBoth:
//		// enter time-set mode
//	}
//
// The debounce and hold thresholds are empirically tuned constants carried
// over from the original hardware; they are configurable in Opts but do not
// transfer meaningfully to other tick rates.
//
// # Backends
//
// Any PortBus implementation can sit under the engine: NewPinBus drives real
// periph.io GPIO pins, while the bustest subpackage provides an op recorder
// and a frame-reconstructing fake for tests and simulators. See examples/
// for a hardware demo, an ebiten windowed simulator and a terminal renderer.
package timesquare
