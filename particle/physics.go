package particle

// integrate advances one particle by a single step and reports whether it is spent
// Order: gravity, drag, move, wall bounce, life decay
func integrate(p *Particle, cfg *Config) bool {
	p.VY += cfg.Gravity
	p.VX *= cfg.AirResistance

	p.X += p.VX
	p.Y += p.VY

	if cfg.Width > 0 {
		p.X, p.VX = reflect(p.X, p.VX, cfg.Width, cfg.BounceDeceleration)
	}
	if cfg.Height > 0 {
		p.Y, p.VY = reflect(p.Y, p.VY, cfg.Height, cfg.BounceDeceleration)
	}

	p.Life -= cfg.LifeDecrement
	if p.Life < 0 {
		p.Life = 0
	}
	p.Size = p.OriginalSize * p.Life
	p.Opacity = p.Life

	return p.Life == 0
}

// reflect handles one axis of boundary collision on [0, limit]
// A position outside the range is clamped and the velocity reversed with decay applied
func reflect(pos, vel, limit, decay float64) (float64, float64) {
	switch {
	case pos < 0:
		return 0, -vel * decay
	case pos > limit:
		return limit, -vel * decay
	default:
		return pos, vel
	}
}
