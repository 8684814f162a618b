package audio

import (
	"time"

	"github.com/lixenwraith/crusher/particle"
)

// Sound identifiers, matching the asset file names under the sample directory
const (
	SoundCan         = "can_crush.mp3"
	SoundCardboard   = "cardboard_crush.mp3"
	SoundElectronics = "electronics_crush.mp3"
	SoundGlass       = "glass_shatter.mp3"
	SoundPlastic     = "plastic_crush.mp3"
	SoundAmbient     = "ambient_background.mp3"
)

// Wave defines oscillator wave shapes
type Wave uint8

const (
	WaveSine Wave = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

func (w Wave) String() string {
	switch w {
	case WaveSquare:
		return "square"
	case WaveSawtooth:
		return "sawtooth"
	case WaveTriangle:
		return "triangle"
	default:
		return "sine"
	}
}

// FilterKind selects the biquad response
type FilterKind uint8

const (
	FilterLowpass FilterKind = iota
	FilterHighpass
	FilterBandpass
)

func (f FilterKind) String() string {
	switch f {
	case FilterHighpass:
		return "highpass"
	case FilterBandpass:
		return "bandpass"
	default:
		return "lowpass"
	}
}

// Recipe describes a synthesized crush sound independent of any output backend
// Ramp == 0 holds StartHz for the whole sound
type Recipe struct {
	StartHz float64
	EndHz   float64
	Ramp    time.Duration
	Wave    Wave
	Filter  FilterKind
	Cutoff  float64
}

// Envelope shared by every synthesized effect
const (
	EnvelopeAttack = 10 * time.Millisecond
	EnvelopeTotal  = 800 * time.Millisecond
	EnvelopePeak   = 0.3
	EnvelopeFloor  = 0.001
)

var recipes = map[string]Recipe{
	SoundCan:         {StartHz: 800, EndHz: 200, Ramp: 300 * time.Millisecond, Wave: WaveSquare, Filter: FilterHighpass, Cutoff: 400},
	SoundCardboard:   {StartHz: 300, EndHz: 100, Ramp: 500 * time.Millisecond, Wave: WaveSawtooth, Filter: FilterBandpass, Cutoff: 200},
	SoundElectronics: {StartHz: 1200, EndHz: 300, Ramp: 400 * time.Millisecond, Wave: WaveSquare, Filter: FilterLowpass, Cutoff: 800},
	SoundGlass:       {StartHz: 2000, EndHz: 500, Ramp: 200 * time.Millisecond, Wave: WaveTriangle, Filter: FilterHighpass, Cutoff: 1000},
	SoundPlastic:     {StartHz: 600, EndHz: 150, Ramp: 600 * time.Millisecond, Wave: WaveSine, Filter: FilterBandpass, Cutoff: 300},
}

// DefaultRecipe is used for unknown sounds: a plain 440Hz tone through an untuned lowpass
var DefaultRecipe = Recipe{StartHz: 440, EndHz: 440, Wave: WaveSine, Filter: FilterLowpass, Cutoff: 350}

// RecipeFor returns the synthesis recipe for a sound id, DefaultRecipe when unknown
func RecipeFor(id string) Recipe {
	if r, ok := recipes[id]; ok {
		return r
	}
	return DefaultRecipe
}

// EffectIDs lists every sound with a dedicated recipe
func EffectIDs() []string {
	return []string{SoundCan, SoundCardboard, SoundElectronics, SoundGlass, SoundPlastic}
}

// SoundForMaterial maps a particle material onto its crush sound, empty for the default tone
func SoundForMaterial(m particle.Material) string {
	switch m {
	case particle.MaterialMetal:
		return SoundCan
	case particle.MaterialPaper:
		return SoundCardboard
	case particle.MaterialMixed:
		return SoundElectronics
	case particle.MaterialGlass:
		return SoundGlass
	case particle.MaterialPlastic:
		return SoundPlastic
	default:
		return ""
	}
}
