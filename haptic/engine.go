package haptic

import (
	"log"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/status"
)

const (
	MinStrength = 0.1
	MaxStrength = 2.0

	// Object crush intensity never drops below this floor
	minObjectIntensity = 0.3

	ambientChance     = 0.3
	ambientIntensity  = 0.2
	ambientPeriodBase = 8 * time.Second
	ambientPeriodSpan = 4 * time.Second
)

// togglePreview is played when vibration is switched back on
var togglePreview = Pattern{100, 50, 100}

// Engine maps semantic crush events onto vibrator patterns
// Safe for concurrent use
type Engine struct {
	mu        sync.Mutex
	vib       Vibrator
	clk       clock.Clock
	rng       *rand.Rand
	enabled   bool
	strength  float64
	vibrating bool
	gen       uint64
	timer     clock.Timer

	patterns *atomic.Int64
}

// NewEngine creates an enabled engine at strength 1.0
// A nil vibrator is treated as unsupported
func NewEngine(v Vibrator, c clock.Clock, rng *rand.Rand, reg *status.Registry) *Engine {
	if v == nil {
		v = NullVibrator{}
	}
	if c == nil {
		c = clock.Real()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		vib:      v,
		clk:      c,
		rng:      rng,
		enabled:  true,
		strength: 1.0,
		patterns: reg.Counter("haptic.patterns"),
	}
}

// Supported reports whether the backing vibrator can vibrate at all
func (e *Engine) Supported() bool {
	return e.vib.Supported()
}

// Vibrate scales pattern by intensity times the global strength and plays it
// Returns false when disabled, unsupported or the vibrator failed
func (e *Engine) Vibrate(p Pattern, intensity float64) bool {
	if len(p) == 0 || !e.vib.Supported() {
		return false
	}

	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return false
	}
	scaled := p.Scale(intensity * e.strength)
	e.gen++
	gen := e.gen
	e.vibrating = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = e.clk.AfterFunc(time.Duration(scaled.Total())*time.Millisecond, func() {
		e.mu.Lock()
		if e.gen == gen {
			e.vibrating = false
		}
		e.mu.Unlock()
	})
	e.mu.Unlock()

	if err := e.vib.Vibrate(scaled); err != nil {
		log.Printf("[haptic] vibrate failed: %v", err)
		e.mu.Lock()
		if e.gen == gen {
			e.vibrating = false
			e.timer.Stop()
		}
		e.mu.Unlock()
		return false
	}
	e.patterns.Add(1)
	return true
}

// Pulse plays a single active duration in milliseconds
func (e *Engine) Pulse(ms int, intensity float64) bool {
	return e.Vibrate(Pattern{ms}, intensity)
}

// PlayForObject plays the crush pattern for an object type, falling back to tap
// Intensity is satisfaction/10 scaled by force, floored at 0.3
func (e *Engine) PlayForObject(objectType string, satisfaction, force float64) bool {
	p, ok := Lookup(objectType + "_crush")
	if !ok {
		p, _ = Lookup(PatternTap)
	}
	intensity := math.Max(minObjectIntensity, satisfaction/10*force)
	return e.Vibrate(p, intensity)
}

// PlayNamedPattern plays a catalog pattern, unknown names are ignored
func (e *Engine) PlayNamedPattern(name string, intensity float64) bool {
	p, ok := Lookup(name)
	if !ok {
		return false
	}
	return e.Vibrate(p, intensity)
}

// PlayFeedback maps feedback kinds to fixed catalog patterns
func (e *Engine) PlayFeedback(kind string) bool {
	switch kind {
	case "success":
		return e.PlayNamedPattern(PatternSatisfactionMedium, 0.8)
	case "achievement":
		return e.PlayNamedPattern(PatternSatisfactionHigh, 1.0)
	case "milestone":
		return e.PlayNamedPattern(PatternMilestone, 1.0)
	default:
		return e.PlayNamedPattern(PatternTap, 0.5)
	}
}

// SetStrength clamps and stores the global strength, then previews it with a tap
func (e *Engine) SetStrength(s float64) {
	if math.IsNaN(s) {
		return
	}
	s = math.Max(MinStrength, math.Min(MaxStrength, s))
	e.mu.Lock()
	e.strength = s
	e.mu.Unlock()
	e.PlayNamedPattern(PatternTap, 1.0)
}

// Strength returns the global strength multiplier
func (e *Engine) Strength() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strength
}

// SetEnabled switches vibration on or off without preview
func (e *Engine) SetEnabled(on bool) {
	e.mu.Lock()
	e.enabled = on
	e.mu.Unlock()
}

// Toggle flips the enabled flag and returns the new state
// Turning vibration on plays a short preview
func (e *Engine) Toggle() bool {
	e.mu.Lock()
	e.enabled = !e.enabled
	on := e.enabled
	e.mu.Unlock()

	if on {
		e.Vibrate(togglePreview, 0.5)
	}
	return on
}

// Enabled returns the enabled flag
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Vibrating reports whether the last pattern is still within its duration
func (e *Engine) Vibrating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vibrating
}

// StartAmbient schedules subtle tingles until the returned task is stopped
// The period is drawn once in [8s, 12s), each tick fires with 30% probability
func (e *Engine) StartAmbient() *clock.Task {
	e.mu.Lock()
	period := ambientPeriodBase + time.Duration(e.rng.Float64()*float64(ambientPeriodSpan))
	e.mu.Unlock()

	return clock.Every(e.clk, period, func() {
		e.mu.Lock()
		roll := e.rng.Float64()
		e.mu.Unlock()
		if roll < ambientChance {
			e.PlayNamedPattern(PatternTingle, ambientIntensity)
		}
	})
}
