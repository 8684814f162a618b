package audio

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/particle"
	"github.com/lixenwraith/crusher/status"
)

const (
	sampleHold = time.Second
	synthHold  = EnvelopeTotal

	ambientSampleGain = 0.3
	ambientDroneGain  = 0.1
	droneBaseHz       = 60.0
	droneSpanHz       = 20.0
	droneDrift        = 5 * time.Second
)

// Config holds the engine start state
type Config struct {
	Rate    beep.SampleRate
	Volume  float64
	Enabled bool
}

// DefaultConfig returns an enabled engine at 70% volume
func DefaultConfig() Config {
	return Config{
		Rate:    DefaultSampleRate,
		Volume:  0.7,
		Enabled: true,
	}
}

// Engine plays crush effects and the ambient layer through a shared mixer
// Samples are preferred; any sound whose sample fails to load is synthesized from its recipe
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	out       Output
	supported bool
	closed    bool
	cache     *sampleCache
	mixer     *beep.Mixer
	clk       clock.Clock
	rng       *rand.Rand

	playing   string
	playGen   uint64
	playTimer clock.Timer

	ambient      *beep.Ctrl
	ambientVol   *effects.Volume
	ambientGain  float64
	ambientDrone *drone
	ambientDrift *clock.Task

	played      *atomic.Int64
	synthesized *atomic.Int64
}

// NewEngine creates an engine on out; a nil output means no audio device and every call no-ops
func NewEngine(cfg Config, out Output, loader SampleLoader, c clock.Clock, rng *rand.Rand, reg *status.Registry) *Engine {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultSampleRate
	}
	cfg.Volume = clampVolume(cfg.Volume)
	if c == nil {
		c = clock.Real()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := &Engine{
		cfg:         cfg,
		out:         out,
		supported:   out != nil,
		mixer:       &beep.Mixer{},
		clk:         c,
		rng:         rng,
		cache:       newSampleCache(loader, cfg.Rate, reg.Counter("audio.samples_missing")),
		played:      reg.Counter("audio.played"),
		synthesized: reg.Counter("audio.synthesized"),
	}
	if out == nil {
		e.out = NullOutput{}
	}
	e.out.Play(e.mixer)
	return e
}

// Preload decodes every known sample up front, returning how many are available
func (e *Engine) Preload() int {
	n := 0
	for _, id := range append(EffectIDs(), SoundAmbient) {
		if e.cache.get(id) != nil {
			n++
		}
	}
	return n
}

// PlayEffect plays the sample for id or its synthesized substitute
// Empty and unknown ids without a sample play the default tone
// Returns false when audio is disabled, unsupported or closed
func (e *Engine) PlayEffect(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.supported || !e.cfg.Enabled {
		return false
	}

	var (
		s    beep.Streamer
		hold time.Duration
	)
	var buf *beep.Buffer
	if id != "" {
		buf = e.cache.get(id)
	}
	if buf != nil {
		s = newVolume(buf.Streamer(0, buf.Len()), e.cfg.Volume)
		hold = sampleHold
	} else {
		s = Synthesize(RecipeFor(id), e.cfg.Volume, e.cfg.Rate)
		hold = synthHold
		e.synthesized.Add(1)
	}

	e.out.Lock()
	e.mixer.Add(s)
	e.out.Unlock()

	e.markPlayingLocked(id, hold)
	e.played.Add(1)
	return true
}

// PlayMaterial plays the crush sound associated with a particle material
func (e *Engine) PlayMaterial(m particle.Material) bool {
	return e.PlayEffect(SoundForMaterial(m))
}

// markPlayingLocked records id as the current effect until hold elapses
func (e *Engine) markPlayingLocked(id string, hold time.Duration) {
	if id == "" {
		id = "default"
	}
	e.playing = id
	e.playGen++
	gen := e.playGen
	if e.playTimer != nil {
		e.playTimer.Stop()
	}
	e.playTimer = e.clk.AfterFunc(hold, func() {
		e.mu.Lock()
		if e.playGen == gen {
			e.playing = ""
		}
		e.mu.Unlock()
	})
}

// Playing returns the id of the most recent effect while it is audible, empty otherwise
func (e *Engine) Playing() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Synthesized reports whether id is served by synthesis after a failed sample load
func (e *Engine) Synthesized(id string) bool {
	return e.cache.isMissing(id)
}

// StartAmbient starts the looping background layer, no-op if already running
func (e *Engine) StartAmbient() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.supported || !e.cfg.Enabled || e.ambient != nil {
		return
	}

	var src beep.Streamer
	if buf := e.cache.get(SoundAmbient); buf != nil {
		src = beep.Loop(-1, buf.Streamer(0, buf.Len()))
		e.ambientGain = ambientSampleGain
	} else {
		e.ambientDrone = newDrone(droneBaseHz, e.cfg.Rate)
		src = e.ambientDrone
		e.ambientGain = ambientDroneGain
		e.ambientDrift = clock.Every(e.clk, droneDrift, e.driftAmbient)
	}

	e.ambientVol = newVolume(src, e.cfg.Volume*e.ambientGain)
	e.ambient = &beep.Ctrl{Streamer: e.ambientVol}

	e.out.Lock()
	e.mixer.Add(e.ambient)
	e.out.Unlock()
}

// driftAmbient retunes the drone while audio is enabled
func (e *Engine) driftAmbient() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.cfg.Enabled || e.ambientDrone == nil {
		return
	}
	e.ambientDrone.SetFreq(droneBaseHz + e.rng.Float64()*droneSpanHz)
}

// StopAmbient stops the background layer
func (e *Engine) StopAmbient() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopAmbientLocked()
}

func (e *Engine) stopAmbientLocked() {
	if e.ambient == nil {
		return
	}
	e.ambientDrift.Stop()

	// A Ctrl without a streamer reports drained and the mixer drops it
	e.out.Lock()
	e.ambient.Paused = true
	e.ambient.Streamer = nil
	e.out.Unlock()

	e.ambient = nil
	e.ambientVol = nil
	e.ambientDrone = nil
	e.ambientDrift = nil
}

// AmbientRunning reports whether the background layer is active
func (e *Engine) AmbientRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ambient != nil
}

// AmbientFrequency returns the drone frequency, zero when the ambient layer is a sample or stopped
func (e *Engine) AmbientFrequency() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ambientDrone == nil {
		return 0
	}
	return e.ambientDrone.Freq()
}

// SetVolume clamps v to [0,1] for future effects and retunes the ambient layer
// One-shot effects already playing keep their gain
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg.Volume = clampVolume(v)
	if e.ambientVol != nil {
		e.out.Lock()
		setGain(e.ambientVol, e.cfg.Volume*e.ambientGain)
		e.out.Unlock()
	}
}

// Volume returns the master volume
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Volume
}

// SetEnabled switches playback on or off, disabling also stops the ambient layer
func (e *Engine) SetEnabled(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Enabled = on
	if !on {
		e.stopAmbientLocked()
	}
}

// Toggle flips playback and starts or stops the ambient layer to match, returns the new state
func (e *Engine) Toggle() bool {
	e.mu.Lock()
	on := !e.cfg.Enabled
	e.cfg.Enabled = on
	if !on {
		e.stopAmbientLocked()
	}
	e.mu.Unlock()

	if on {
		e.StartAmbient()
	}
	return on
}

// Enabled returns the enabled flag
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Enabled
}

// Supported reports whether an output device is attached
func (e *Engine) Supported() bool {
	return e.supported
}

// Close stops every sound and releases the output, idempotent
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.stopAmbientLocked()
	if e.playTimer != nil {
		e.playTimer.Stop()
	}
	e.playing = ""

	e.out.Lock()
	e.mixer.Clear()
	e.out.Unlock()
	return e.out.Close()
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
