package haptic

import (
	"sync"
	"time"

	"github.com/lixenwraith/crusher/clock"
)

// Vibrator is the hardware side of the engine
// Vibrate replaces any pattern still in flight, it never queues
type Vibrator interface {
	Supported() bool
	Vibrate(p Pattern) error
}

// NullVibrator is used when no vibration capability exists
type NullVibrator struct{}

func (NullVibrator) Supported() bool         { return false }
func (NullVibrator) Vibrate(p Pattern) error { return nil }

// Beeper is satisfied by tcell.Screen
type Beeper interface {
	Beep() error
}

// BellVibrator approximates vibration with the terminal bell
// One beep is rung at the start of every non-empty pulse
type BellVibrator struct {
	beeper Beeper
	clk    clock.Clock

	mu      sync.Mutex
	pending []*clock.Task
}

// NewBellVibrator creates a bell-backed vibrator
func NewBellVibrator(b Beeper, c clock.Clock) *BellVibrator {
	if c == nil {
		c = clock.Real()
	}
	return &BellVibrator{beeper: b, clk: c}
}

// Supported reports whether a beeper is attached
func (v *BellVibrator) Supported() bool {
	return v != nil && v.beeper != nil
}

// Vibrate cancels the in-flight pattern and schedules the new one
// The first pulse rings immediately
func (v *BellVibrator) Vibrate(p Pattern) error {
	if !v.Supported() {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, t := range v.pending {
		t.Stop()
	}
	v.pending = v.pending[:0]

	offset := 0
	var first error
	for i, d := range p {
		if i%2 == 0 && d > 0 {
			if offset == 0 {
				if err := v.beeper.Beep(); err != nil && first == nil {
					first = err
				}
			} else {
				v.pending = append(v.pending, clock.After(v.clk, time.Duration(offset)*time.Millisecond, v.ring))
			}
		}
		offset += d
	}
	return first
}

// Cancel stops any scheduled pulses
func (v *BellVibrator) Cancel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.pending {
		t.Stop()
	}
	v.pending = v.pending[:0]
}

func (v *BellVibrator) ring() {
	_ = v.beeper.Beep()
}
