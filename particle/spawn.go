package particle

import "math"

// SpawnBurst emits floor(BaseCount*intensity) particles evenly spaced on a full circle around (x, y)
// Radial speed grows with intensity and every particle gets the same upward kick
// Returns the burst size, zero for non-positive intensity; at most burstMax
func (s *Simulation) SpawnBurst(x, y float64, material Material, intensity float64) int {
	if intensity <= 0 || math.IsNaN(intensity) || math.IsInf(intensity, 0) {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := math.Floor(float64(s.cfg.BaseCount) * intensity)
	if count < 1 {
		return 0
	}
	n := burstMax
	if count < burstMax {
		n = int(count)
	}

	// Only the newest MaxParticles survive the trim, so skip the rest up front
	first := 0
	if limit := s.cfg.MaxParticles; limit > 0 && n > limit {
		first = n - limit
	}

	batch := make([]Particle, n-first)
	for j := range batch {
		angle := 2 * math.Pi * float64(first+j) / float64(n)
		speed := burstSpeedBase + s.rng.Float64()*burstSpeedJitter*intensity
		size := burstSizeBase + s.rng.Float64()*burstSizeJitter

		batch[j] = Particle{
			X:            x + (s.rng.Float64()-0.5)*burstJitter,
			Y:            y + (s.rng.Float64()-0.5)*burstJitter,
			VX:           math.Cos(angle) * speed,
			VY:           math.Sin(angle)*speed - burstUpwardBias,
			Life:         1.0,
			Opacity:      1.0,
			Size:         size,
			OriginalSize: size,
			Material:     material,
		}
	}
	s.addLocked(batch)
	return n
}

// SpawnSparkle emits a fixed ring of short accent particles drifting outward from (x, y)
func (s *Simulation) SpawnSparkle(x, y float64, color string) int {
	if color == "" {
		color = "white"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]Particle, sparkleCount)
	for i := range batch {
		angle := 2 * math.Pi * float64(i) / sparkleCount
		dist := sparkleRadiusBase + s.rng.Float64()*sparkleRadiusJitter
		size := sparkleSizeBase + s.rng.Float64()*sparkleSizeJitter

		batch[i] = Particle{
			X:            x + math.Cos(angle)*dist,
			Y:            y + math.Sin(angle)*dist,
			VX:           math.Cos(angle) * sparkleSpeed,
			VY:           math.Sin(angle) * sparkleSpeed,
			Life:         1.0,
			Opacity:      1.0,
			Size:         size,
			OriginalSize: size,
			Material:     MaterialSparkle,
			Color:        color,
		}
	}
	s.addLocked(batch)
	return sparkleCount
}
