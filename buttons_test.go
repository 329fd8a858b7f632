package timesquare

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/mwm/timesquare/bustest"
)

const (
	patLeftDown  = lineRight // left line low
	patRightDown = lineLeft
	patBothDown  = uint8(0)
)

func newButtons() *buttonState {
	s := &buttonState{}
	s.reset(2, 76)
	return s
}

func ticks(s *buttonState, n int) {
	for i := 0; i < n; i++ {
		s.tick()
	}
}

func TestTapLeft(t *testing.T) {
	s := newButtons()
	s.transition(patLeftDown)
	ticks(s, 3)
	s.transition(linesIdle)
	if got := s.poll(); got != ActionTapLeft {
		t.Fatalf("poll() = %v, want tap-left", got)
	}
	if got := s.poll(); got != ActionNone {
		t.Fatalf("second poll() = %v, want none", got)
	}
}

func TestTapRight(t *testing.T) {
	s := newButtons()
	s.transition(patRightDown)
	ticks(s, 10)
	s.transition(linesIdle)
	if got := s.poll(); got != ActionTapRight {
		t.Fatalf("poll() = %v, want tap-right", got)
	}
}

func TestTapBelowDebounce(t *testing.T) {
	s := newButtons()
	s.transition(patLeftDown)
	ticks(s, 2) // not past the >2 threshold
	s.transition(linesIdle)
	if got := s.poll(); got != ActionNone {
		t.Fatalf("poll() = %v for a bounce-length press, want none", got)
	}
}

func TestHoldActions(t *testing.T) {
	tests := []struct {
		name string
		pat  uint8
		want Action
	}{
		{"hold left", patLeftDown, ActionHoldLeft},
		{"hold right", patRightDown, ActionHoldRight},
		{"hold both", patBothDown, ActionHoldBoth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newButtons()
			s.transition(tt.pat)
			ticks(s, 77) // counter reaches 76, next tick fires
			if got := s.poll(); got != tt.want {
				t.Fatalf("poll() = %v, want %v", got, tt.want)
			}
			// The release after a hold must not produce a tap.
			s.transition(linesIdle)
			if got := s.poll(); got != ActionNone {
				t.Fatalf("poll() after release = %v, want none", got)
			}
		})
	}
}

func TestHoldStopsCounting(t *testing.T) {
	s := newButtons()
	s.transition(patLeftDown)
	ticks(s, 200) // well past the threshold; only one action may fire
	if got := s.poll(); got != ActionHoldLeft {
		t.Fatalf("poll() = %v, want hold-left", got)
	}
	if got := s.poll(); got != ActionNone {
		t.Fatalf("second poll() = %v, want none", got)
	}
}

func TestBounceIgnored(t *testing.T) {
	s := newButtons()
	s.transition(patLeftDown)
	ticks(s, 5)
	s.transition(patLeftDown) // contact bounce: identical pattern
	if s.count != 5 {
		t.Fatalf("bounce reset the hold counter to %d", s.count)
	}
	if got := s.poll(); got != ActionNone {
		t.Fatalf("bounce produced action %v", got)
	}
	s.transition(linesIdle)
	if got := s.poll(); got != ActionTapLeft {
		t.Fatalf("poll() = %v, want tap-left despite bounce", got)
	}
}

func TestBothPressedRelease(t *testing.T) {
	s := newButtons()
	s.transition(patLeftDown)
	ticks(s, 3)
	s.transition(patBothDown) // second button joins: counter restarts
	if s.count != 0 {
		t.Fatalf("pattern change did not restart counter, count = %d", s.count)
	}
	ticks(s, 5)
	s.transition(linesIdle)
	// Saved pattern was both-down, which has no tap classification.
	if got := s.poll(); got != ActionNone {
		t.Fatalf("poll() = %v, want none for a two-button tap", got)
	}
}

func TestActionLastWriteWins(t *testing.T) {
	s := newButtons()
	s.transition(patLeftDown)
	ticks(s, 5)
	s.transition(linesIdle)
	// Unread tap-left is overwritten by the next completed action.
	s.transition(patRightDown)
	ticks(s, 5)
	s.transition(linesIdle)
	if got := s.poll(); got != ActionTapRight {
		t.Fatalf("poll() = %v, want tap-right (last write wins)", got)
	}
	if got := s.poll(); got != ActionNone {
		t.Fatalf("second poll() = %v, want none", got)
	}
}

func TestTickWhileIdle(t *testing.T) {
	s := newButtons()
	ticks(s, 100)
	if got := s.poll(); got != ActionNone {
		t.Fatalf("idle ticking produced action %v", got)
	}
}

func TestActionString(t *testing.T) {
	for a, want := range map[Action]string{
		ActionNone:      "none",
		ActionTapLeft:   "tap-left",
		ActionTapRight:  "tap-right",
		ActionHoldLeft:  "hold-left",
		ActionHoldRight: "hold-right",
		ActionHoldBoth:  "hold-both",
		Action(42):      "invalid",
	} {
		if got := a.String(); got != want {
			t.Errorf("Action(%d).String() = %q, want %q", uint8(a), got, want)
		}
	}
}

// waitAction polls the device until an action arrives or the deadline hits.
func waitAction(t *testing.T, d *Dev, timeout time.Duration) Action {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a := d.Action(); a != ActionNone {
			return a
		}
		time.Sleep(time.Millisecond)
	}
	return ActionNone
}

func TestButtonPins(t *testing.T) {
	left := &gpiotest.Pin{N: "LEFT", EdgesChan: make(chan gpio.Level, 8), L: gpio.High}
	right := &gpiotest.Pin{N: "RIGHT", EdgesChan: make(chan gpio.Level, 8), L: gpio.High}
	d, err := New(&bustest.Record{}, &Opts{
		BaseUnit:      50 * time.Microsecond,
		Left:          left,
		Right:         right,
		HoldTick:      time.Millisecond,
		DebounceTicks: 2,
		HoldTicks:     200,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Begin(); err != nil {
		t.Fatal(err)
	}
	defer d.Halt()

	// Tap: press long enough to debounce, release well before the hold
	// threshold.
	left.EdgesChan <- gpio.Low
	time.Sleep(15 * time.Millisecond)
	left.EdgesChan <- gpio.High
	if got := waitAction(t, d, 2*time.Second); got != ActionTapLeft {
		t.Fatalf("tap scenario produced %v, want tap-left", got)
	}

	// Hold: keep the button down past the hold threshold.
	right.EdgesChan <- gpio.Low
	if got := waitAction(t, d, 2*time.Second); got != ActionHoldRight {
		t.Fatalf("hold scenario produced %v, want hold-right", got)
	}
	right.EdgesChan <- gpio.High
	time.Sleep(10 * time.Millisecond)
	if got := d.Action(); got != ActionNone {
		t.Fatalf("release after hold produced %v, want none", got)
	}
}
