package particle

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/status"
)

// Simulation owns the live particle set and steps it on a fixed cadence
// One instance per arena, shared by the session machine (spawning) and the view (snapshots)
type Simulation struct {
	mu        sync.Mutex
	cfg       Config
	particles []Particle
	rng       *rand.Rand
	nextID    uint64
	steps     uint64

	live    *status.Gauge
	spawned *atomic.Int64
}

// NewSimulation creates an empty simulation
// rng may be nil for a time-seeded source; reg may be nil
func NewSimulation(cfg Config, rng *rand.Rand, reg *status.Registry) *Simulation {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.BaseCount <= 0 {
		cfg.BaseCount = DefaultConfig().BaseCount
	}
	return &Simulation{
		cfg:       cfg,
		particles: make([]Particle, 0, 256),
		rng:       rng,
		live:      reg.Gauge("particles.live"),
		spawned:   reg.Counter("particles.spawned"),
	}
}

// Config returns the current physics configuration
func (s *Simulation) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig replaces the physics configuration, live particles keep their state
func (s *Simulation) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.BaseCount <= 0 {
		cfg.BaseCount = s.cfg.BaseCount
	}
	s.cfg = cfg
	s.trimLocked()
}

// SetGravity adjusts gravity only
func (s *Simulation) SetGravity(g float64) {
	s.mu.Lock()
	s.cfg.Gravity = g
	s.mu.Unlock()
}

// SetAirResistance adjusts horizontal drag only
func (s *Simulation) SetAirResistance(r float64) {
	s.mu.Lock()
	s.cfg.AirResistance = r
	s.mu.Unlock()
}

// SetViewport updates the bounce bounds, e.g. after a terminal resize
func (s *Simulation) SetViewport(width, height float64) {
	s.mu.Lock()
	s.cfg.Width = width
	s.cfg.Height = height
	s.mu.Unlock()
}

// Step advances every particle by one tick
// Particles spent on the previous step are dropped first, so a zero-life particle is visible for exactly one snapshot
func (s *Simulation) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	alive := 0
	for i := range s.particles {
		p := s.particles[i]
		if p.Life <= 0 {
			continue
		}
		integrate(&p, &s.cfg)
		s.particles[alive] = p
		alive++
	}
	// Clear tail so dropped particles are not retained by the backing array
	for i := alive; i < len(s.particles); i++ {
		s.particles[i] = Particle{}
	}
	s.particles = s.particles[:alive]
	s.steps++
	s.live.Set(float64(alive))
}

// Steps returns the number of completed physics steps
func (s *Simulation) Steps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// Len returns the number of particles in the live set
func (s *Simulation) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.particles)
}

// Snapshot copies the live set for rendering
func (s *Simulation) Snapshot() []Particle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Particle, len(s.particles))
	copy(out, s.particles)
	return out
}

// Clear drops every particle
func (s *Simulation) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.particles = s.particles[:0]
	s.live.Set(0)
}

// Run steps the simulation every period until the returned task is stopped
func (s *Simulation) Run(c clock.Clock, period time.Duration) *clock.Task {
	return clock.Every(c, period, s.Step)
}

// addLocked appends freshly spawned particles and enforces the capacity
func (s *Simulation) addLocked(ps []Particle) {
	for i := range ps {
		s.nextID++
		ps[i].ID = s.nextID
	}
	s.particles = append(s.particles, ps...)
	s.trimLocked()
	s.spawned.Add(int64(len(ps)))
	s.live.Set(float64(len(s.particles)))
}

// trimLocked drops the oldest particles beyond MaxParticles
func (s *Simulation) trimLocked() {
	limit := s.cfg.MaxParticles
	if limit <= 0 || len(s.particles) <= limit {
		return
	}
	drop := len(s.particles) - limit
	copy(s.particles, s.particles[drop:])
	s.particles = s.particles[:limit]
}
