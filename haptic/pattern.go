package haptic

import "math"

// Pattern is a sequence of millisecond durations alternating pulse and pause
// Even indices vibrate, odd indices are silent gaps
type Pattern []int

// Scale multiplies pulse entries by factor and rounds, pauses are kept as is
// Negative results clamp to zero
func (p Pattern) Scale(factor float64) Pattern {
	out := make(Pattern, len(p))
	for i, d := range p {
		if i%2 == 0 {
			out[i] = ScaleDuration(d, factor)
		} else {
			out[i] = d
		}
	}
	return out
}

// Total returns the pattern length in milliseconds
func (p Pattern) Total() int {
	sum := 0
	for _, d := range p {
		sum += d
	}
	return sum
}

// Pulses returns the number of active entries
func (p Pattern) Pulses() int {
	return (len(p) + 1) / 2
}

// ScaleDuration scales a single pulse duration
func ScaleDuration(d int, factor float64) int {
	v := math.Round(float64(d) * factor)
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return int(v)
}

// Catalog names
const (
	PatternTap                = "tap"
	PatternPulse              = "pulse"
	PatternSatisfactionLow    = "satisfaction_low"
	PatternSatisfactionMedium = "satisfaction_medium"
	PatternSatisfactionHigh   = "satisfaction_high"
	PatternTingle             = "tingle"
	PatternWave               = "wave"
	PatternHeartbeat          = "heartbeat"
	PatternMilestone          = "milestone"
)

// catalog holds the immutable named patterns, copied on lookup
var catalog = map[string]Pattern{
	PatternTap:   {50},
	PatternPulse: {100, 50, 100},

	// Crushing sensations, keyed by object type
	"can_crush":         {100, 50, 200},
	"cardboard_crush":   {150, 100, 150, 100},
	"electronics_crush": {200, 150, 300, 100},
	"glass_shatter":     {50, 200, 50, 200, 300},
	"plastic_crush":     {80, 40, 120},

	PatternSatisfactionLow:    {80, 80, 80},
	PatternSatisfactionMedium: {100, 50, 150, 50, 100},
	PatternSatisfactionHigh:   {200, 100, 300, 50, 400},

	PatternTingle:    {30, 50, 30, 50, 30},
	PatternWave:      {50, 30, 100, 30, 150, 30, 100, 30, 50},
	PatternHeartbeat: {120, 500, 120},
	PatternMilestone: {200, 100, 200, 100, 400},
}

// Lookup returns a copy of the named catalog pattern
func Lookup(name string) (Pattern, bool) {
	p, ok := catalog[name]
	if !ok {
		return nil, false
	}
	out := make(Pattern, len(p))
	copy(out, p)
	return out, true
}

// Names lists every catalog entry
func Names() []string {
	out := make([]string, 0, len(catalog))
	for k := range catalog {
		out = append(out, k)
	}
	return out
}
