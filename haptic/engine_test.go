package haptic

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/status"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// recordingVibrator captures every pattern sent to the hardware
type recordingVibrator struct {
	supported bool
	err       error
	played    []Pattern
}

func (r *recordingVibrator) Supported() bool { return r.supported }

func (r *recordingVibrator) Vibrate(p Pattern) error {
	r.played = append(r.played, p)
	return r.err
}

func (r *recordingVibrator) last() Pattern {
	if len(r.played) == 0 {
		return nil
	}
	return r.played[len(r.played)-1]
}

func newTestEngine(v Vibrator) (*Engine, *clock.Mock) {
	m := clock.NewMock(epoch)
	return NewEngine(v, m, rand.New(rand.NewSource(7)), status.NewRegistry()), m
}

// TestScaleCanCrush verifies the half-intensity can pattern
func TestScaleCanCrush(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, _ := newTestEngine(v)

	if !e.PlayNamedPattern("can_crush", 0.5) {
		t.Fatal("Expected pattern to play")
	}
	want := Pattern{50, 50, 100}
	if !reflect.DeepEqual(v.last(), want) {
		t.Errorf("Expected %v, got %v", want, v.last())
	}
}

// TestScaleKeepsPauses verifies only even indices change under scaling
func TestScaleKeepsPauses(t *testing.T) {
	for _, name := range Names() {
		p, _ := Lookup(name)
		for _, f := range []float64{0.1, 0.3, 1.7} {
			s := p.Scale(f)
			for i := 1; i < len(p); i += 2 {
				if s[i] != p[i] {
					t.Errorf("%s x%.1f: pause %d changed %d -> %d", name, f, i, p[i], s[i])
				}
			}
		}
		if !reflect.DeepEqual(p.Scale(1.0), p) {
			t.Errorf("%s: unit scale altered pattern", name)
		}
	}
}

// TestScaleRounding verifies half values round away from zero
func TestScaleRounding(t *testing.T) {
	if got := ScaleDuration(25, 0.5); got != 13 {
		t.Errorf("Expected 13, got %d", got)
	}
	if got := ScaleDuration(50, -1); got != 0 {
		t.Errorf("Expected negative clamp to 0, got %d", got)
	}
	if got := (Pattern{100, 50, 200}).Total(); got != 350 {
		t.Errorf("Expected total 350, got %d", got)
	}
}

// TestLookupReturnsCopy verifies callers cannot mutate the catalog
func TestLookupReturnsCopy(t *testing.T) {
	p, _ := Lookup(PatternTap)
	p[0] = 999
	q, _ := Lookup(PatternTap)
	if q[0] != 50 {
		t.Errorf("Catalog mutated through lookup: %v", q)
	}
}

// TestPlayForObject verifies pattern selection and intensity floor
func TestPlayForObject(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, _ := newTestEngine(v)

	// 8/10 * 1.0 = 0.8
	e.PlayForObject("plastic", 8, 1.0)
	if want := (Pattern{64, 40, 96}); !reflect.DeepEqual(v.last(), want) {
		t.Errorf("Expected %v, got %v", want, v.last())
	}

	// 2/10 * 0.5 = 0.1, floored to 0.3
	e.PlayForObject("can", 2, 0.5)
	if want := (Pattern{30, 50, 60}); !reflect.DeepEqual(v.last(), want) {
		t.Errorf("Expected floored %v, got %v", want, v.last())
	}

	// No box_crush pattern, falls back to tap
	e.PlayForObject("box", 10, 1.0)
	if want := (Pattern{50}); !reflect.DeepEqual(v.last(), want) {
		t.Errorf("Expected tap fallback %v, got %v", want, v.last())
	}
}

// TestStrengthMultiplies verifies global strength and its clamp
func TestStrengthMultiplies(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, _ := newTestEngine(v)

	e.SetStrength(2.0)
	if want := (Pattern{100}); !reflect.DeepEqual(v.last(), want) {
		t.Errorf("Expected preview tap %v, got %v", want, v.last())
	}

	e.PlayNamedPattern("can_crush", 0.5)
	if want := (Pattern{100, 50, 200}); !reflect.DeepEqual(v.last(), want) {
		t.Errorf("Expected %v, got %v", want, v.last())
	}

	e.SetStrength(50)
	if e.Strength() != MaxStrength {
		t.Errorf("Expected clamp to %v, got %v", MaxStrength, e.Strength())
	}
	e.SetStrength(0)
	if e.Strength() != MinStrength {
		t.Errorf("Expected clamp to %v, got %v", MinStrength, e.Strength())
	}
}

// TestPlayFeedback verifies the fixed feedback mapping
func TestPlayFeedback(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, _ := newTestEngine(v)

	tests := []struct {
		kind string
		want Pattern
	}{
		{"success", Pattern{80, 50, 120, 50, 80}},
		{"achievement", Pattern{200, 100, 300, 50, 400}},
		{"milestone", Pattern{200, 100, 200, 100, 400}},
		{"whatever", Pattern{25}},
	}
	for _, tt := range tests {
		e.PlayFeedback(tt.kind)
		if !reflect.DeepEqual(v.last(), tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.kind, tt.want, v.last())
		}
	}
}

// TestUnknownPatternIgnored verifies unknown names do not vibrate
func TestUnknownPatternIgnored(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, _ := newTestEngine(v)
	if e.PlayNamedPattern("earthquake", 1) {
		t.Error("Expected unknown pattern to be ignored")
	}
	if len(v.played) != 0 {
		t.Errorf("Expected no vibration, got %v", v.played)
	}
}

// TestVibratingClearsAfterTotal verifies the busy flag follows the scaled duration
func TestVibratingClearsAfterTotal(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, m := newTestEngine(v)

	e.PlayNamedPattern("can_crush", 0.5) // [50,50,100] -> 200ms
	if !e.Vibrating() {
		t.Fatal("Expected vibrating after play")
	}
	m.Advance(199 * time.Millisecond)
	if !e.Vibrating() {
		t.Error("Expected still vibrating at 199ms")
	}
	m.Advance(time.Millisecond)
	if e.Vibrating() {
		t.Error("Expected vibrating cleared at 200ms")
	}
}

// TestVibratingRestartsTimer verifies a new pattern extends the busy window
func TestVibratingRestartsTimer(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, m := newTestEngine(v)

	e.PlayNamedPattern(PatternTap, 1.0) // 50ms
	m.Advance(40 * time.Millisecond)
	e.PlayNamedPattern(PatternTap, 1.0)
	m.Advance(20 * time.Millisecond)
	if !e.Vibrating() {
		t.Error("Expected first timer cancelled by second pattern")
	}
	m.Advance(30 * time.Millisecond)
	if e.Vibrating() {
		t.Error("Expected vibrating cleared after second pattern")
	}
}

// TestUnsupportedNoop verifies every call is silent without hardware
func TestUnsupportedNoop(t *testing.T) {
	e, _ := newTestEngine(NullVibrator{})
	if e.Supported() {
		t.Error("Expected unsupported")
	}
	if e.PlayForObject("can", 10, 1) || e.PlayFeedback("success") {
		t.Error("Expected no-op on unsupported vibrator")
	}
	if e.Vibrating() {
		t.Error("Expected not vibrating")
	}
}

// TestDisabledNoop verifies disabled engines do not vibrate
func TestDisabledNoop(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, _ := newTestEngine(v)
	e.SetEnabled(false)
	if e.PlayNamedPattern(PatternPulse, 1) {
		t.Error("Expected disabled engine to skip")
	}
	if len(v.played) != 0 {
		t.Errorf("Expected nothing played, got %v", v.played)
	}
}

// TestTogglePreview verifies re-enabling plays the half pulse preview
func TestTogglePreview(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, _ := newTestEngine(v)

	if e.Toggle() {
		t.Fatal("Expected first toggle to disable")
	}
	if len(v.played) != 0 {
		t.Error("Expected no preview when disabling")
	}
	if !e.Toggle() {
		t.Fatal("Expected second toggle to enable")
	}
	if want := (Pattern{50, 50, 50}); !reflect.DeepEqual(v.last(), want) {
		t.Errorf("Expected preview %v, got %v", want, v.last())
	}
}

// TestVibratorFailure verifies hardware errors clear the busy flag
func TestVibratorFailure(t *testing.T) {
	v := &recordingVibrator{supported: true, err: errors.New("device gone")}
	e, _ := newTestEngine(v)
	if e.PlayNamedPattern(PatternPulse, 1) {
		t.Error("Expected failure to report false")
	}
	if e.Vibrating() {
		t.Error("Expected vibrating cleared after failure")
	}
}

// TestAmbientTingles verifies ambient ticks are periodic and stop cleanly
func TestAmbientTingles(t *testing.T) {
	v := &recordingVibrator{supported: true}
	e, m := newTestEngine(v)

	task := e.StartAmbient()
	if p := task.Period(); p < 8*time.Second || p >= 12*time.Second {
		t.Fatalf("Ambient period %v outside [8s,12s)", p)
	}

	m.Advance(100 * task.Period())
	if task.Runs() != 100 {
		t.Errorf("Expected 100 ticks, got %d", task.Runs())
	}
	// 30% chance per tick, 100 ticks with a fixed seed lands well inside (5, 60)
	if n := len(v.played); n <= 5 || n >= 60 {
		t.Errorf("Unexpected tingle count %d", n)
	}
	for _, p := range v.played {
		if want := (Pattern{6, 50, 6, 50, 6}); !reflect.DeepEqual(p, want) {
			t.Errorf("Expected tingle at 0.2 %v, got %v", want, p)
		}
	}

	task.Stop()
	before := len(v.played)
	m.Advance(time.Minute)
	if len(v.played) != before {
		t.Error("Ambient fired after stop")
	}
}

// fakeBeeper counts bell rings
type fakeBeeper struct{ n int }

func (f *fakeBeeper) Beep() error { f.n++; return nil }

// TestBellVibrator verifies one ring per non-empty pulse and cancellation
func TestBellVibrator(t *testing.T) {
	m := clock.NewMock(epoch)
	b := &fakeBeeper{}
	v := NewBellVibrator(b, m)

	if err := v.Vibrate(Pattern{100, 50, 200, 100, 0}); err != nil {
		t.Fatalf("Vibrate: %v", err)
	}
	if b.n != 1 {
		t.Fatalf("Expected immediate ring, got %d", b.n)
	}
	m.Advance(150 * time.Millisecond)
	if b.n != 2 {
		t.Errorf("Expected second ring at 150ms, got %d", b.n)
	}

	v.Vibrate(Pattern{50, 500, 50})
	v.Vibrate(Pattern{50})
	m.Advance(time.Second)
	if b.n != 4 {
		t.Errorf("Expected replaced pattern not to ring, got %d rings", b.n)
	}

	if (NullVibrator{}).Supported() || NewBellVibrator(nil, m).Supported() {
		t.Error("Expected null and beeper-less vibrators unsupported")
	}
}
