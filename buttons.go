package timesquare

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Action is a semantic button event produced by the debounce/hold state
// machine. There is room for exactly one pending Action; producing a new one
// overwrites an unread predecessor.
type Action uint8

const (
	ActionNone Action = iota
	ActionTapLeft
	ActionTapRight
	ActionHoldLeft
	ActionHoldRight
	ActionHoldBoth
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionTapLeft:
		return "tap-left"
	case ActionTapRight:
		return "tap-right"
	case ActionHoldLeft:
		return "hold-left"
	case ActionHoldRight:
		return "hold-right"
	case ActionHoldBoth:
		return "hold-both"
	}
	return "invalid"
}

// Raw line patterns. Bit 0 is the left line, bit 1 the right line; the lines
// idle high through pull-ups, so a clear bit means that button is down.
const (
	lineLeft  uint8 = 0x01
	lineRight uint8 = 0x02
	linesIdle       = lineLeft | lineRight
)

// classify maps a saved (pre-release) line pattern to an action.
func classify(save uint8, hold bool) Action {
	switch save {
	case lineRight: // left line low: left button down
		if hold {
			return ActionHoldLeft
		}
		return ActionTapLeft
	case lineLeft:
		if hold {
			return ActionHoldRight
		}
		return ActionTapRight
	case 0:
		if hold {
			return ActionHoldBoth
		}
	}
	return ActionNone
}

// buttonState is the debounce/hold state machine. transition runs on every
// line edge, tick on every hold-timer period; both arrive from different
// goroutines, so the whole struct sits behind one small mutex (the original
// relied on interrupts being serialized by hardware).
type buttonState struct {
	mu       sync.Mutex
	save     uint8 // pattern at the last accepted change
	count    int   // hold ticks since the last real change
	armed    bool  // hold counter running
	pending  Action
	debounce int
	hold     int
}

func (s *buttonState) reset(debounce, hold int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save = linesIdle
	s.count = 0
	s.armed = false
	s.pending = ActionNone
	s.debounce = debounce
	s.hold = hold
}

// transition feeds one observed 2-bit line pattern into the machine.
//
// Full release stops the hold counter and, if the press outlived the
// debounce threshold without a hold having fired, classifies the previously
// saved pattern as a tap. A pattern identical to the saved one is contact
// bounce and is dropped. Any other change restarts the hold counter.
func (s *buttonState) transition(raw uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case raw == linesIdle:
		s.armed = false
		if s.count > s.debounce {
			if a := classify(s.save, false); a != ActionNone {
				s.pending = a
			}
		}
	case raw == s.save:
		return
	default:
		s.count = 0
		s.armed = true
	}
	s.save = raw
}

// tick advances the hold counter. Crossing the hold threshold fires the
// hold action for the currently held pattern, stops the counter and clears
// the saved state so the eventual release is not also reported as a tap.
func (s *buttonState) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return
	}
	if s.count >= s.hold {
		s.armed = false
		if a := classify(s.save, true); a != ActionNone {
			s.pending = a
		}
		s.save = 0
		s.count = 0
		return
	}
	s.count++
}

// poll returns and clears the pending action.
func (s *buttonState) poll() Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.pending
	s.pending = ActionNone
	return a
}

// readLines samples both button lines into a raw pattern.
func (d *Dev) readLines() uint8 {
	var raw uint8
	if d.opts.Left.Read() == gpio.High {
		raw |= lineLeft
	}
	if d.opts.Right.Read() == gpio.High {
		raw |= lineRight
	}
	return raw
}

// edgeLoop waits for edges on one button line and feeds the combined
// pattern of both lines into the state machine, the pin-change interrupt of
// the original. The wait is bounded so Halt can stop the loop.
func (d *Dev) edgeLoop(pin gpio.PinIO) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		default:
		}
		if pin.WaitForEdge(500 * time.Millisecond) {
			d.buttons.transition(d.readLines())
		}
	}
}

// holdLoop runs the hold-duration counter. The ticker always runs; the
// armed flag inside the state machine decides whether a tick counts.
func (d *Dev) holdLoop() {
	defer d.wg.Done()
	t := time.NewTicker(d.opts.HoldTick)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-t.C:
			d.buttons.tick()
		}
	}
}
