package audio

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/particle"
	"github.com/lixenwraith/crusher/status"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const testRate = beep.SampleRate(48000)

// recordingOutput keeps what the engine handed to the device
type recordingOutput struct {
	streams []beep.Streamer
	locks   int
	closed  int
}

func (o *recordingOutput) Play(s beep.Streamer) { o.streams = append(o.streams, s) }
func (o *recordingOutput) Lock()                { o.locks++ }
func (o *recordingOutput) Unlock()              {}
func (o *recordingOutput) Close() error         { o.closed++; return nil }

// mapLoader serves in-memory buffers by id
type mapLoader map[string]*beep.Buffer

func (l mapLoader) Load(id string, rate beep.SampleRate) (*beep.Buffer, error) {
	if buf, ok := l[id]; ok {
		return buf, nil
	}
	return nil, ErrNoSample
}

// toneBuffer renders d of a 440Hz sine
func toneBuffer(d time.Duration) *beep.Buffer {
	buf := beep.NewBuffer(beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2})
	buf.Append(beep.Take(testRate.N(d), newDrone(440, testRate)))
	return buf
}

func newTestEngine(loader SampleLoader) (*Engine, *recordingOutput, *clock.Mock, *status.Registry) {
	out := &recordingOutput{}
	m := clock.NewMock(epoch)
	reg := status.NewRegistry()
	cfg := DefaultConfig()
	cfg.Rate = testRate
	e := NewEngine(cfg, out, loader, m, rand.New(rand.NewSource(3)), reg)
	return e, out, m, reg
}

// drain streams s to completion and returns every left channel sample
func drain(s beep.Streamer, limit int) []float64 {
	var out []float64
	buf := make([][2]float64, 512)
	for len(out) < limit {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			out = append(out, buf[i][0])
		}
		if !ok {
			break
		}
	}
	return out
}

func rms(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// TestRecipeTable verifies the per-material synthesis parameters
func TestRecipeTable(t *testing.T) {
	tests := []struct {
		id     string
		start  float64
		end    float64
		ramp   time.Duration
		wave   Wave
		filter FilterKind
		cutoff float64
	}{
		{SoundCan, 800, 200, 300 * time.Millisecond, WaveSquare, FilterHighpass, 400},
		{SoundCardboard, 300, 100, 500 * time.Millisecond, WaveSawtooth, FilterBandpass, 200},
		{SoundElectronics, 1200, 300, 400 * time.Millisecond, WaveSquare, FilterLowpass, 800},
		{SoundGlass, 2000, 500, 200 * time.Millisecond, WaveTriangle, FilterHighpass, 1000},
		{SoundPlastic, 600, 150, 600 * time.Millisecond, WaveSine, FilterBandpass, 300},
		{"mystery.mp3", 440, 440, 0, WaveSine, FilterLowpass, 350},
	}
	for _, tt := range tests {
		r := RecipeFor(tt.id)
		if r.StartHz != tt.start || r.EndHz != tt.end || r.Ramp != tt.ramp ||
			r.Wave != tt.wave || r.Filter != tt.filter || r.Cutoff != tt.cutoff {
			t.Errorf("%s: unexpected recipe %+v", tt.id, r)
		}
	}
}

// TestSoundForMaterial verifies material to sound mapping
func TestSoundForMaterial(t *testing.T) {
	tests := map[particle.Material]string{
		particle.MaterialMetal:   SoundCan,
		particle.MaterialPaper:   SoundCardboard,
		particle.MaterialMixed:   SoundElectronics,
		particle.MaterialGlass:   SoundGlass,
		particle.MaterialPlastic: SoundPlastic,
		particle.MaterialDefault: "",
		particle.MaterialSparkle: "",
	}
	for m, want := range tests {
		if got := SoundForMaterial(m); got != want {
			t.Errorf("%s: expected %q, got %q", m, want, got)
		}
	}
}

// TestSweepRamp verifies the exponential frequency ramp and hold
func TestSweepRamp(t *testing.T) {
	o := NewSweep(RecipeFor(SoundCan), EnvelopeTotal, testRate).(*sweep)
	if f := o.freqAt(0); f != 800 {
		t.Errorf("Expected 800Hz at start, got %v", f)
	}
	if f := o.freqAt(o.rampN / 2); math.Abs(f-400) > 1 {
		t.Errorf("Expected geometric midpoint 400Hz, got %v", f)
	}
	if f := o.freqAt(o.rampN + 1000); f != 200 {
		t.Errorf("Expected hold at 200Hz, got %v", f)
	}

	flat := NewSweep(DefaultRecipe, EnvelopeTotal, testRate).(*sweep)
	if flat.freqAt(0) != 440 || flat.freqAt(10000) != 440 {
		t.Error("Expected default recipe to hold 440Hz")
	}
}

// TestWaveShapes verifies unit amplitude waveforms
func TestWaveShapes(t *testing.T) {
	if waveAt(WaveSquare, 0.25) != 1 || waveAt(WaveSquare, 0.75) != -1 {
		t.Error("Square wave levels wrong")
	}
	if waveAt(WaveTriangle, 0) != -1 || waveAt(WaveTriangle, 0.5) != 1 {
		t.Error("Triangle wave extremes wrong")
	}
	if waveAt(WaveSawtooth, 0) != -1 || waveAt(WaveSawtooth, 0.5) != 0 {
		t.Error("Sawtooth wave ramp wrong")
	}
	for _, w := range []Wave{WaveSine, WaveSquare, WaveSawtooth, WaveTriangle} {
		for p := 0.0; p < 1; p += 0.01 {
			if v := waveAt(w, p); v < -1 || v > 1 {
				t.Fatalf("%s out of range at %v: %v", w, p, v)
			}
		}
	}
}

// TestEnvelopeShape verifies attack peak, decay floor and total length
func TestEnvelopeShape(t *testing.T) {
	peak := EnvelopePeak * 0.7
	e := NewEnvelope(newDrone(0, testRate), EnvelopeAttack, EnvelopeTotal, peak, EnvelopeFloor, testRate).(*envelope)

	if g := e.gainAt(0); g != 0 {
		t.Errorf("Expected silent start, got %v", g)
	}
	if g := e.gainAt(e.attack); math.Abs(g-peak) > 1e-12 {
		t.Errorf("Expected peak %v after attack, got %v", peak, g)
	}
	if g := e.gainAt(e.total); math.Abs(g-EnvelopeFloor) > 1e-9 {
		t.Errorf("Expected floor %v at end, got %v", EnvelopeFloor, g)
	}
	if g1, g2 := e.gainAt(e.attack+100), e.gainAt(e.attack+200); g2 >= g1 {
		t.Error("Expected monotonic decay")
	}
}

// TestSynthesizeLength verifies synthesized effects stop after the envelope
func TestSynthesizeLength(t *testing.T) {
	for _, id := range append(EffectIDs(), "") {
		samples := drain(Synthesize(RecipeFor(id), 1.0, testRate), testRate.N(2*time.Second))
		if want := testRate.N(EnvelopeTotal); len(samples) != want {
			t.Errorf("%q: expected %d samples, got %d", id, want, len(samples))
		}
		for i, s := range samples {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				t.Fatalf("%q: non-finite sample at %d", id, i)
			}
		}
		if rms(samples) == 0 {
			t.Errorf("%q: synthesized silence", id)
		}
	}
}

// TestFilterResponse verifies lowpass and highpass attenuate the far band
func TestFilterResponse(t *testing.T) {
	n := testRate.N(200 * time.Millisecond)
	skip := testRate.N(20 * time.Millisecond)

	high := drain(NewFilter(beep.Take(n, newDrone(8000, testRate)), FilterLowpass, 350, testRate), n)
	if r := rms(high[skip:]); r > 0.05 {
		t.Errorf("Lowpass 350Hz passed 8kHz with rms %v", r)
	}

	low := drain(NewFilter(beep.Take(n, newDrone(40, testRate)), FilterHighpass, 1000, testRate), n)
	if r := rms(low[skip:]); r > 0.05 {
		t.Errorf("Highpass 1kHz passed 40Hz with rms %v", r)
	}

	pass := drain(NewFilter(beep.Take(n, newDrone(300, testRate)), FilterBandpass, 300, testRate), n)
	if r := rms(pass[skip:]); r < 0.5 {
		t.Errorf("Bandpass 300Hz attenuated its centre to rms %v", r)
	}
}

// TestPlayEffectSynthesizesMissing verifies per-sound fallback and metrics
func TestPlayEffectSynthesizesMissing(t *testing.T) {
	e, out, _, reg := newTestEngine(mapLoader{SoundGlass: toneBuffer(time.Second)})

	if len(out.streams) != 1 {
		t.Fatalf("Expected mixer handed to output once, got %d", len(out.streams))
	}

	if !e.PlayEffect(SoundCan) {
		t.Fatal("Expected can effect to play")
	}
	if !e.Synthesized(SoundCan) {
		t.Error("Expected can to be synthesized")
	}
	if !e.PlayEffect(SoundGlass) {
		t.Fatal("Expected glass effect to play")
	}
	if e.Synthesized(SoundGlass) {
		t.Error("Expected glass to use its sample")
	}
	if e.mixer.Len() != 2 {
		t.Errorf("Expected 2 streamers in mixer, got %d", e.mixer.Len())
	}

	snap := reg.Snapshot()
	if snap["audio.played"] != 2 || snap["audio.synthesized"] != 1 || snap["audio.samples_missing"] != 1 {
		t.Errorf("Unexpected metrics %v", snap)
	}

	// A second play of the missing sound does not retry the load
	e.PlayEffect(SoundCan)
	if reg.Snapshot()["audio.samples_missing"] != 1 {
		t.Error("Expected missing sample to be remembered")
	}
}

// TestMixerOutputAudible verifies queued effects reach the device stream
func TestMixerOutputAudible(t *testing.T) {
	e, out, _, _ := newTestEngine(nil)
	e.PlayEffect(SoundPlastic)

	samples := drain(out.streams[0], testRate.N(100*time.Millisecond))
	if rms(samples) == 0 {
		t.Error("Expected audible mixer output")
	}
}

// TestPlayingIndicator verifies the playing id clears after the effect duration
func TestPlayingIndicator(t *testing.T) {
	e, _, m, _ := newTestEngine(mapLoader{SoundCan: toneBuffer(time.Second)})

	e.PlayEffect(SoundPlastic)
	if e.Playing() != SoundPlastic {
		t.Fatalf("Expected %s playing, got %q", SoundPlastic, e.Playing())
	}
	m.Advance(EnvelopeTotal)
	if e.Playing() != "" {
		t.Errorf("Expected synthesized indicator cleared after %v", EnvelopeTotal)
	}

	e.PlayEffect(SoundCan)
	m.Advance(900 * time.Millisecond)
	if e.Playing() != SoundCan {
		t.Error("Expected sample indicator to last a second")
	}
	m.Advance(100 * time.Millisecond)
	if e.Playing() != "" {
		t.Error("Expected sample indicator cleared")
	}
}

// TestDisabledAndUnsupported verifies silent no-ops
func TestDisabledAndUnsupported(t *testing.T) {
	e, _, _, reg := newTestEngine(nil)
	e.SetEnabled(false)
	if e.PlayEffect(SoundCan) || e.PlayMaterial(particle.MaterialGlass) {
		t.Error("Expected disabled engine to skip playback")
	}
	if reg.Snapshot()["audio.played"] != 0 {
		t.Error("Expected nothing counted while disabled")
	}

	none := NewEngine(DefaultConfig(), nil, nil, clock.NewMock(epoch), nil, nil)
	if none.Supported() {
		t.Error("Expected engine without output to be unsupported")
	}
	if none.PlayEffect(SoundCan) {
		t.Error("Expected unsupported engine to skip playback")
	}
	none.StartAmbient()
	if none.AmbientRunning() {
		t.Error("Expected no ambient without output")
	}
}

// TestAmbientDrone verifies the synthetic drone and its drift
func TestAmbientDrone(t *testing.T) {
	e, _, m, _ := newTestEngine(nil)

	e.StartAmbient()
	if !e.AmbientRunning() {
		t.Fatal("Expected ambient running")
	}
	if f := e.AmbientFrequency(); f != 60 {
		t.Errorf("Expected 60Hz drone, got %v", f)
	}
	if want := math.Log2(0.7 * 0.1); math.Abs(e.ambientVol.Volume-want) > 1e-12 {
		t.Errorf("Expected drone gain %v, got %v", want, e.ambientVol.Volume)
	}

	for i := 0; i < 5; i++ {
		m.Advance(5 * time.Second)
		if f := e.AmbientFrequency(); f < 60 || f >= 80 {
			t.Errorf("Drift %d outside [60,80): %v", i, f)
		}
	}

	e.SetVolume(0.5)
	if want := math.Log2(0.5 * 0.1); math.Abs(e.ambientVol.Volume-want) > 1e-12 {
		t.Errorf("Expected live ambient gain %v, got %v", want, e.ambientVol.Volume)
	}

	if e.Toggle() {
		t.Fatal("Expected toggle to disable")
	}
	if e.AmbientRunning() {
		t.Error("Expected ambient stopped when disabled")
	}
	if m.Pending() != 0 {
		t.Errorf("Expected drift timer cancelled, %d pending", m.Pending())
	}

	if !e.Toggle() || !e.AmbientRunning() {
		t.Error("Expected toggle on to restart ambient")
	}
}

// TestAmbientSample verifies a loaded ambient sample replaces the drone
func TestAmbientSample(t *testing.T) {
	e, _, m, _ := newTestEngine(mapLoader{SoundAmbient: toneBuffer(100 * time.Millisecond)})

	e.StartAmbient()
	if !e.AmbientRunning() || e.AmbientFrequency() != 0 {
		t.Fatal("Expected sample ambient without drone")
	}
	if want := math.Log2(0.7 * 0.3); math.Abs(e.ambientVol.Volume-want) > 1e-12 {
		t.Errorf("Expected ambient gain %v, got %v", want, e.ambientVol.Volume)
	}
	if m.Pending() != 0 {
		t.Error("Expected no drift task for sample ambient")
	}

	// Loops past the sample length
	samples := drain(e.ambient, testRate.N(300*time.Millisecond))
	if len(samples) != testRate.N(300*time.Millisecond) {
		t.Errorf("Expected ambient to loop, streamed %d samples", len(samples))
	}

	e.StopAmbient()
	e.StopAmbient()
	if e.AmbientRunning() {
		t.Error("Expected ambient stopped")
	}
}

// TestVolumeClamp verifies volume bounds and zero-gain silence
func TestVolumeClamp(t *testing.T) {
	e, _, _, _ := newTestEngine(nil)
	e.SetVolume(3)
	if e.Volume() != 1 {
		t.Errorf("Expected clamp to 1, got %v", e.Volume())
	}
	e.SetVolume(-1)
	if e.Volume() != 0 {
		t.Errorf("Expected clamp to 0, got %v", e.Volume())
	}

	e.StartAmbient()
	if !e.ambientVol.Silent {
		t.Error("Expected zero volume ambient to be silent")
	}
}

// TestCloseIdempotent verifies teardown releases the output once
func TestCloseIdempotent(t *testing.T) {
	e, out, _, _ := newTestEngine(nil)
	e.StartAmbient()
	e.PlayEffect(SoundCan)

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	e.Close()
	if out.closed != 1 {
		t.Errorf("Expected output closed once, got %d", out.closed)
	}
	if e.PlayEffect(SoundCan) {
		t.Error("Expected playback refused after close")
	}
	if e.mixer.Len() != 0 {
		t.Error("Expected mixer cleared")
	}
}

// TestDirLoader verifies wav decoding, resampling and the mp3 to wav fallback
func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	srcRate := beep.SampleRate(44100)
	n := srcRate.N(200 * time.Millisecond)

	f, err := os.Create(filepath.Join(dir, "can_crush.wav"))
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: srcRate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Take(n, newDrone(440, srcRate)), format); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	l := DirLoader{Dir: dir}
	buf, err := l.Load(SoundCan, testRate)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := testRate.N(200 * time.Millisecond)
	if diff := buf.Len() - want; diff < -200 || diff > 200 {
		t.Errorf("Expected about %d resampled samples, got %d", want, buf.Len())
	}

	if _, err := l.Load(SoundGlass, testRate); err == nil {
		t.Error("Expected error for missing sample")
	}
	if _, err := (DirLoader{}).Load(SoundCan, testRate); err != ErrNoSample {
		t.Errorf("Expected ErrNoSample without directory, got %v", err)
	}

	e := NewEngine(Config{Rate: testRate, Volume: 1, Enabled: true}, &recordingOutput{}, l, clock.NewMock(epoch), nil, nil)
	if got := e.Preload(); got != 1 {
		t.Errorf("Expected 1 preloaded sample, got %d", got)
	}
}

// TestVolumeChangeKeepsInFlightGain verifies SetVolume only affects effects started afterwards
func TestVolumeChangeKeepsInFlightGain(t *testing.T) {
	level := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{0.5, 0.5}
		}
		return len(samples), true
	})
	buf := beep.NewBuffer(beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2})
	buf.Append(beep.Take(testRate.N(time.Second), level))

	e, out, _, _ := newTestEngine(mapLoader{SoundCan: buf})
	chunk := testRate.N(50 * time.Millisecond)

	e.PlayEffect(SoundCan)
	before := drain(out.streams[0], chunk)
	v := before[len(before)-1]
	if v <= 0 {
		t.Fatalf("Expected audible sample, got %v", v)
	}

	e.SetVolume(0.1)
	during := drain(out.streams[0], chunk)
	if got := during[len(during)-1]; math.Abs(got-v) > 1e-9 {
		t.Errorf("In-flight effect changed gain: %v -> %v", v, got)
	}

	e.PlayEffect(SoundCan)
	mixed := drain(out.streams[0], chunk)
	want := v + v*0.1/0.7
	if got := mixed[len(mixed)-1]; math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected new effect at the new gain, mix %v want %v", got, want)
	}
}
