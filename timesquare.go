package timesquare

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/mwm/timesquare/bitplane"
)

// Opts is the configuration for the matrix driver. The zero value of every
// field selects the default noted on it.
type Opts struct {
	// DoubleBuffered allocates a second frame buffer so the foreground can
	// draw while the engine scans the other buffer. Single-buffer mode uses
	// one buffer for both roles and accepts visible tearing.
	DoubleBuffered bool

	// BaseUnit is the exposure time of bit-plane 0, the shortest LED on
	// time. Plane k is shown for BaseUnit << k, so a full frame takes
	// BaseUnit * 255 * 8. Must exceed Overhead. Default: 7.5us, the
	// original watch timing (60 cycles at 8MHz, ~65 frames/s).
	BaseUnit time.Duration

	// Overhead is subtracted from each programmed interval to compensate
	// for fixed tick entry/exit cost. Default: 0; hosted timers carry
	// their own slop and there is no meaningful fixed figure to preset.
	Overhead time.Duration

	// Left and Right are the two button lines, wired with pull-ups so a
	// press reads low. Both nil disables the button machinery.
	Left, Right gpio.PinIO

	// HoldTick is the period of the hold-duration counter while a button
	// is down. Default: 33ms, matching the original ~30.5Hz timer.
	HoldTick time.Duration

	// DebounceTicks is the hold-counter value a press must exceed before
	// its release counts as a tap. Default: 2. Empirically tuned against
	// HoldTick; the values do not transfer to other tick rates.
	DebounceTicks int

	// HoldTicks is the hold-counter value at which a press becomes a hold
	// action. Default: 76 (about 2.5s at the default HoldTick).
	HoldTicks int
}

// Defaults used when the corresponding Opts field is zero.
const (
	DefaultBaseUnit      = 7500 * time.Nanosecond
	DefaultHoldTick      = 33 * time.Millisecond
	DefaultDebounceTicks = 2
	DefaultHoldTicks     = 76
)

// Dev drives one 8x8 matrix and its two buttons.
//
// Field ownership is strict: the refresh goroutine alone writes frontIdx,
// scan, plane, interval and frames; the foreground alone writes swapReq (set)
// and consumes swap grants; the button goroutines alone write the pending
// action. Cross-thread fields are atomics, so no reader ever observes a torn
// value.
type Dev struct {
	opts Opts
	bus  PortBus

	bufs     [2]*bitplane.Buffer
	frontIdx atomic.Uint32

	swapReq atomic.Bool
	swapped chan struct{}

	frames    atomic.Uint32
	frameTick chan struct{}

	// Refresh cursor, engine goroutine only.
	scan     uint8
	plane    uint8
	interval time.Duration

	buttons buttonState

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New allocates the frame buffers and validates the configuration. The
// display cannot operate past a construction failure, so every error here is
// fatal to the caller; nothing after Begin can fail at runtime.
//
// opts may be nil for the defaults (single-buffered, no buttons).
func New(bus PortBus, opts *Opts) (*Dev, error) {
	if bus == nil {
		return nil, errors.New("timesquare: nil port bus")
	}
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.BaseUnit == 0 {
		o.BaseUnit = DefaultBaseUnit
	}
	if o.HoldTick == 0 {
		o.HoldTick = DefaultHoldTick
	}
	if o.DebounceTicks == 0 {
		o.DebounceTicks = DefaultDebounceTicks
	}
	if o.HoldTicks == 0 {
		o.HoldTicks = DefaultHoldTicks
	}
	if o.BaseUnit <= o.Overhead {
		return nil, fmt.Errorf("timesquare: base unit %v must exceed overhead %v", o.BaseUnit, o.Overhead)
	}
	if o.Overhead < 0 || o.BaseUnit < 0 {
		return nil, errors.New("timesquare: negative timing constants")
	}
	if o.DebounceTicks < 0 || o.HoldTicks <= o.DebounceTicks {
		return nil, errors.New("timesquare: hold threshold must exceed debounce threshold")
	}
	if (o.Left == nil) != (o.Right == nil) {
		return nil, errors.New("timesquare: both button pins must be wired, or neither")
	}

	d := &Dev{
		opts:      o,
		bus:       bus,
		swapped:   make(chan struct{}, 1),
		frameTick: make(chan struct{}, 1),
	}
	d.bufs[0] = bitplane.NewBuffer()
	if o.DoubleBuffered {
		d.bufs[1] = bitplane.NewBuffer()
	} else {
		d.bufs[1] = d.bufs[0]
	}
	// Start at the last scan slot of the last plane so the very first tick
	// runs the wraparound bookkeeping and begins a clean frame.
	d.scan = 7
	d.plane = 7
	d.interval = o.BaseUnit - o.Overhead
	d.buttons.reset(o.DebounceTicks, o.HoldTicks)
	return d, nil
}

// Begin blanks the matrix and starts the refresh engine and, if button pins
// were configured, the edge watchers and hold ticker.
func (d *Dev) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("timesquare: already running")
	}
	d.blank()
	if d.opts.Left != nil {
		if err := d.opts.Left.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("timesquare: left button: %w", err)
		}
		if err := d.opts.Right.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("timesquare: right button: %w", err)
		}
	}
	// Clear any swap request or stale grant left by a halt mid-swap.
	d.swapReq.Store(false)
	select {
	case <-d.swapped:
	default:
	}
	select {
	case <-d.frameTick:
	default:
	}
	d.stop = make(chan struct{})
	d.running = true

	d.wg.Add(1)
	go d.refreshLoop()
	if d.opts.Left != nil {
		d.wg.Add(3)
		go d.edgeLoop(d.opts.Left)
		go d.edgeLoop(d.opts.Right)
		go d.holdLoop()
	}
	return nil
}

// Halt stops the engine and button machinery and leaves every LED off.
// It implements conn.Resource. Halting an idle device is a no-op.
func (d *Dev) Halt() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
	d.blank()
	return nil
}

// blank drives all outputs to their off state.
func (d *Dev) blank() {
	for col := 0; col < bitplane.Height; col++ {
		d.bus.SetColumn(col, false)
	}
	d.bus.WritePorts(bitplane.PortBOff, bitplane.PortCOff, bitplane.PortDOff)
}

// BackBuffer returns the buffer not currently being scanned out. All drawing
// goes here; the pointer identity changes at every SwapBuffers.
func (d *Dev) BackBuffer() *bitplane.Buffer {
	return d.bufs[1-d.frontIdx.Load()]
}

// SetPixel writes an 8-bit intensity into the back buffer. Coordinates
// outside the 8x8 matrix are ignored.
func (d *Dev) SetPixel(x, y int, level uint8) {
	d.BackBuffer().SetGray(x, y, level)
}

// ColorModel returns color.GrayModel.
func (d *Dev) ColorModel() color.Model {
	return color.GrayModel
}

// Bounds returns the fixed 8x8 display bounds.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, bitplane.Width, bitplane.Height)
}

// Draw renders src into the back buffer. Together with SwapBuffers it forms
// the display.Drawer surface: draw, then swap to make the frame visible.
// In single-buffer mode the result is visible immediately.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	if r.Empty() {
		return nil
	}
	draw.Draw(d.BackBuffer(), r, src, sp, draw.Src)
	return nil
}

// SwapBuffers requests a front/back exchange and blocks until the refresh
// engine performs it at the next plane wraparound, the one point where the
// exchange cannot tear the visible frame. Worst-case latency is one full
// frame period.
//
// With copyForward, the new back buffer is then made byte-identical to the
// new front buffer, so incremental drawing only needs to touch what changed.
func (d *Dev) SwapBuffers(copyForward bool) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return errors.New("timesquare: not running")
	}
	stop := d.stop
	d.mu.Unlock()

	d.swapReq.Store(true)
	select {
	case <-d.swapped:
	case <-stop:
		return errors.New("timesquare: halted")
	}
	if copyForward {
		d.BackBuffer().CopyFrom(d.bufs[d.frontIdx.Load()])
	}
	return nil
}

// Frames returns the monotonically increasing frame counter, bumped once per
// full 8-plane refresh cycle.
func (d *Dev) Frames() uint32 {
	return d.frames.Load()
}

// DelayFrames blocks until the engine has completed n more frames. The unit
// is frames, not wall time; one frame is FramePeriod.
func (d *Dev) DelayFrames(n uint32) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return errors.New("timesquare: not running")
	}
	stop := d.stop
	d.mu.Unlock()

	target := d.frames.Load() + n
	for int32(d.frames.Load()-target) < 0 {
		select {
		case <-d.frameTick:
		case <-stop:
			return errors.New("timesquare: halted")
		}
	}
	return nil
}

// Action returns the pending button action and clears it, or ActionNone if
// nothing is pending. Actions are not queued: an unread action is lost when
// the next one arrives.
func (d *Dev) Action() Action {
	return d.buttons.poll()
}

// FramePeriod returns the duration of one full refresh cycle: all eight
// planes of all eight columns, BaseUnit * 255 * 8.
func (d *Dev) FramePeriod() time.Duration {
	return d.opts.BaseUnit * 255 * bitplane.Planes
}

// FrameRate returns the refresh rate implied by BaseUnit. With the default
// timing this is about 65Hz; column cycling inside each plane makes flicker
// look closer to twice that.
func (d *Dev) FrameRate() physic.Frequency {
	return physic.PeriodToFrequency(d.FramePeriod())
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	mode := "single"
	if d.opts.DoubleBuffered {
		mode = "double"
	}
	return fmt.Sprintf("timesquare.Dev{%dx%d, %s-buffered}", bitplane.Width, bitplane.Height, mode)
}
