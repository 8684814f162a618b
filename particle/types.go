package particle

import "strings"

// Material drives particle styling and selects the synthesis recipe on the audio side
type Material uint8

const (
	MaterialDefault Material = iota
	MaterialMetal
	MaterialPaper
	MaterialGlass
	MaterialPlastic
	MaterialMixed
	MaterialSparkle
)

var materialNames = [...]string{
	MaterialDefault: "default",
	MaterialMetal:   "metal",
	MaterialPaper:   "paper",
	MaterialGlass:   "glass",
	MaterialPlastic: "plastic",
	MaterialMixed:   "mixed",
	MaterialSparkle: "sparkle",
}

func (m Material) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return materialNames[MaterialDefault]
}

// ParseMaterial maps a backend tag to a Material, unknown or empty tags become MaterialDefault
func ParseMaterial(tag string) Material {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for i, name := range materialNames {
		if name == tag {
			return Material(i)
		}
	}
	return MaterialDefault
}

// Particle is one live effect sprite in arena pixel space
type Particle struct {
	ID       uint64
	X, Y     float64
	VX, VY   float64
	Life     float64 // 1.0 at spawn, 0 when spent
	Size     float64 // OriginalSize scaled by Life
	Opacity  float64 // equals Life
	Material Material
	Color    string // accent color for sparkles, empty otherwise

	OriginalSize float64
}

// Config holds the physics constants, all adjustable while particles are live
// Velocities are pixels per step, Gravity is added to VY every step
type Config struct {
	Gravity            float64
	AirResistance      float64 // VX multiplier per step
	BounceDeceleration float64 // speed retained after hitting a wall
	LifeDecrement      float64 // life lost per step

	// Viewport bounds; a non-positive dimension disables bouncing on that axis
	Width  float64
	Height float64

	BaseCount    int // particles per burst at intensity 1.0
	MaxParticles int // oldest particles are dropped beyond this
}

// Burst and sparkle shaping
const (
	burstSpeedBase   = 50.0
	burstSpeedJitter = 100.0
	burstUpwardBias  = 50.0
	burstJitter      = 20.0 // spawn position spread, centered
	burstSizeBase    = 2.0
	burstSizeJitter  = 4.0
	burstMax         = 10000 // hard ceiling when MaxParticles is unlimited

	sparkleCount        = 8
	sparkleRadiusBase   = 30.0
	sparkleRadiusJitter = 20.0
	sparkleSpeed        = 20.0
	sparkleSizeBase     = 3.0
	sparkleSizeJitter   = 3.0
)

// DefaultConfig returns the tuned values for a 60 steps per second cadence
func DefaultConfig() Config {
	return Config{
		Gravity:            0.5,
		AirResistance:      0.98,
		BounceDeceleration: 0.7,
		LifeDecrement:      0.02,
		Width:              800,
		Height:             600,
		BaseCount:          15,
		MaxParticles:       2000,
	}
}
