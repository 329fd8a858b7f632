package timesquare

import (
	"time"

	"github.com/mwm/timesquare/bitplane"
)

// columnOrder is the fixed scan permutation of the eight columns. Columns
// advance in this interleaved order of physical lines rather than 0..7 so
// multiplexing artifacts are spread across the matrix, which matters most
// when content scrolls horizontally. The order is a constant of the original
// hardware design, not derivable from the geometry; it must be reproduced
// exactly or motion looks wrong.
var columnOrder = [bitplane.Height]uint8{0, 4, 2, 6, 1, 5, 3, 7}

// planeExposure is the bit-angle-modulation law: plane k stays lit for
// BaseUnit << k, so the eight plane windows sum to BaseUnit * 255 and the
// visible brightness is linear in the stored 8-bit intensity.
func (d *Dev) planeExposure(plane uint8) time.Duration {
	return d.opts.BaseUnit << plane
}

// planeInterval is the value programmed into the tick timer for a plane:
// the exposure minus the fixed tick overhead, so the LED on time stays
// accurate even though entering and leaving the tick costs time.
func (d *Dev) planeInterval(plane uint8) time.Duration {
	return d.planeExposure(plane) - d.opts.Overhead
}

// step is the refresh tick, the moral equivalent of the original timer
// interrupt. It must stay short: every delay here is visible as brightness
// distortion, and nothing in it may fail.
//
// One tick: blank the previously lit column, latch the new column's three
// port bytes for the current plane, then enable the new column. The timer
// interval is reprogrammed once per plane, at the first column of the scan
// order. Plane wraparound is the only point where a requested buffer swap is
// honored, which is what guarantees the visible frame is always entirely one
// buffer.
func (d *Dev) step() time.Duration {
	col := columnOrder[d.scan]
	d.bus.SetColumn(int(columnOrder[(d.scan+7)&7]), false)

	if d.scan == 0 {
		d.interval = d.planeInterval(d.plane)
	}

	front := d.bufs[d.frontIdx.Load()]
	pb, pc, pd := front.PortBytes(int(col), int(d.plane))
	d.bus.WritePorts(pb, pc, pd)

	if d.scan == 7 {
		if d.plane++; d.plane >= bitplane.Planes {
			d.plane = 0
			if d.swapReq.CompareAndSwap(true, false) {
				d.frontIdx.Store(d.frontIdx.Load() ^ 1)
				select {
				case d.swapped <- struct{}{}:
				default:
				}
			}
			d.frames.Add(1)
			select {
			case d.frameTick <- struct{}{}:
			default:
			}
		}
	}

	d.bus.SetColumn(int(col), true)
	d.scan = (d.scan + 1) & 7
	return d.interval
}

// refreshLoop drives step at the programmed plane intervals until Halt.
func (d *Dev) refreshLoop() {
	defer d.wg.Done()
	t := time.NewTimer(0)
	if !t.Stop() {
		<-t.C
	}
	for {
		t.Reset(d.step())
		select {
		case <-d.stop:
			if !t.Stop() {
				<-t.C
			}
			return
		case <-t.C:
		}
	}
}
