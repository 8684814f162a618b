package audio

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// sweep is an oscillator whose frequency ramps exponentially from start to end, then holds
type sweep struct {
	wave     Wave
	start    float64
	ratio    float64 // end/start
	rampN    int
	rate     beep.SampleRate
	phase    float64
	position int
	duration int
}

// NewSweep creates an oscillator following the recipe frequency ramp for duration
func NewSweep(r Recipe, duration time.Duration, rate beep.SampleRate) beep.Streamer {
	ratio := 1.0
	if r.StartHz > 0 && r.EndHz > 0 {
		ratio = r.EndHz / r.StartHz
	}
	return &sweep{
		wave:     r.Wave,
		start:    r.StartHz,
		ratio:    ratio,
		rampN:    rate.N(r.Ramp),
		rate:     rate,
		duration: rate.N(duration),
	}
}

// freqAt returns the instantaneous frequency at sample n
func (o *sweep) freqAt(n int) float64 {
	if o.rampN <= 0 || o.ratio == 1 {
		return o.start
	}
	if n >= o.rampN {
		return o.start * o.ratio
	}
	return o.start * math.Pow(o.ratio, float64(n)/float64(o.rampN))
}

func (o *sweep) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.duration {
			return i, i > 0
		}

		val := waveAt(o.wave, o.phase)
		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freqAt(o.position) / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.position++
	}
	return len(samples), true
}

func (o *sweep) Err() error { return nil }

// waveAt evaluates a unit amplitude wave at phase in [0, 1)
func waveAt(w Wave, phase float64) float64 {
	switch w {
	case WaveSquare:
		if phase < 0.5 {
			return 1.0
		}
		return -1.0
	case WaveSawtooth:
		return 2.0 * (phase - 0.5)
	case WaveTriangle:
		if phase < 0.5 {
			return 4.0*phase - 1.0
		}
		return 3.0 - 4.0*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// biquadQ matches the default quality factor of a browser biquad node
const biquadQ = 1.0

// biquad is a second order IIR filter with RBJ cookbook coefficients, one state per channel
type biquad struct {
	streamer beep.Streamer

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [2]float64
}

// NewFilter wraps s in a biquad of the given kind and cutoff
func NewFilter(s beep.Streamer, kind FilterKind, cutoff float64, rate beep.SampleRate) beep.Streamer {
	nyquist := float64(rate) / 2
	if cutoff <= 0 || cutoff >= nyquist {
		cutoff = math.Min(math.Max(cutoff, 1), nyquist*0.99)
	}

	w0 := 2 * math.Pi * cutoff / float64(rate)
	cos := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * biquadQ)

	var b0, b1, b2 float64
	switch kind {
	case FilterHighpass:
		b0 = (1 + cos) / 2
		b1 = -(1 + cos)
		b2 = (1 + cos) / 2
	case FilterBandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	default:
		b0 = (1 - cos) / 2
		b1 = 1 - cos
		b2 = (1 - cos) / 2
	}
	a0 := 1 + alpha

	return &biquad{
		streamer: s,
		b0:       b0 / a0,
		b1:       b1 / a0,
		b2:       b2 / a0,
		a1:       -2 * cos / a0,
		a2:       (1 - alpha) / a0,
	}
}

func (f *biquad) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = f.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		for c := 0; c < 2; c++ {
			x := samples[i][c]
			y := f.b0*x + f.b1*f.x1[c] + f.b2*f.x2[c] - f.a1*f.y1[c] - f.a2*f.y2[c]
			f.x2[c], f.x1[c] = f.x1[c], x
			f.y2[c], f.y1[c] = f.y1[c], y
			samples[i][c] = y
		}
	}
	return n, ok
}

func (f *biquad) Err() error { return f.streamer.Err() }

// envelope applies a linear attack to peak followed by an exponential decay to floor
// The stream ends at total regardless of the source length
type envelope struct {
	streamer beep.Streamer
	position int
	attack   int
	total    int
	peak     float64
	decay    float64 // per-sample multiplier after the attack
}

// NewEnvelope shapes s with the crush envelope scaled to peak
func NewEnvelope(s beep.Streamer, attack, total time.Duration, peak, floor float64, rate beep.SampleRate) beep.Streamer {
	att := rate.N(attack)
	tot := rate.N(total)
	if att > tot {
		att = tot
	}

	decay := 1.0
	if peak > floor && tot > att {
		decay = math.Pow(floor/peak, 1/float64(tot-att))
	}

	return &envelope{
		streamer: s,
		attack:   att,
		total:    tot,
		peak:     peak,
		decay:    decay,
	}
}

// gainAt returns the envelope value at sample n
func (e *envelope) gainAt(n int) float64 {
	if n < e.attack {
		return e.peak * float64(n) / float64(e.attack)
	}
	return e.peak * math.Pow(e.decay, float64(n-e.attack))
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	remaining := e.total - e.position
	if remaining <= 0 {
		return 0, false
	}
	if len(samples) > remaining {
		samples = samples[:remaining]
	}

	n, ok = e.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		g := e.gainAt(e.position)
		samples[i][0] *= g
		samples[i][1] *= g
		e.position++
	}
	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }

// Synthesize builds the oscillator, filter and envelope graph for a recipe
// volume scales the envelope peak; the result lasts EnvelopeTotal
func Synthesize(r Recipe, volume float64, rate beep.SampleRate) beep.Streamer {
	osc := NewSweep(r, EnvelopeTotal, rate)
	filtered := NewFilter(osc, r.Filter, r.Cutoff, rate)
	return NewEnvelope(filtered, EnvelopeAttack, EnvelopeTotal, EnvelopePeak*volume, EnvelopeFloor, rate)
}

// drone is an endless sine whose frequency can be changed while playing
type drone struct {
	freq  atomic.Uint64 // float64 bits
	rate  beep.SampleRate
	phase float64
}

func newDrone(freq float64, rate beep.SampleRate) *drone {
	d := &drone{rate: rate}
	d.SetFreq(freq)
	return d
}

// SetFreq retunes the drone, effective from the next streamed buffer
func (d *drone) SetFreq(f float64) {
	d.freq.Store(math.Float64bits(f))
}

// Freq returns the current drone frequency
func (d *drone) Freq() float64 {
	return math.Float64frombits(d.freq.Load())
}

func (d *drone) Stream(samples [][2]float64) (n int, ok bool) {
	step := d.Freq() / float64(d.rate)
	for i := range samples {
		val := math.Sin(2 * math.Pi * d.phase)
		samples[i][0] = val
		samples[i][1] = val
		d.phase += step
		d.phase -= math.Floor(d.phase)
	}
	return len(samples), true
}

func (d *drone) Err() error { return nil }

// newVolume wraps s in a linear gain
// math.Log2(0) is -Inf, so zero gain is expressed as Silent
func newVolume(s beep.Streamer, gain float64) *effects.Volume {
	v := &effects.Volume{Streamer: s, Base: 2}
	setGain(v, gain)
	return v
}

// setGain retunes an existing volume effect; callers hold the output lock when it is playing
func setGain(v *effects.Volume, gain float64) {
	if gain <= 0 {
		v.Volume = 0
		v.Silent = true
		return
	}
	v.Volume = math.Log2(gain)
	v.Silent = false
}
