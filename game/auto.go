package game

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lixenwraith/crusher/clock"
)

// startAutoLocked (re)arms the auto-crush timer with a fresh period
// Each restart bumps autoGen so intents from the previous timer are ignored
func (m *Machine) startAutoLocked() {
	m.stopAutoLocked()
	m.autoGen++
	gen := m.autoGen

	span := m.opts.AutoMax - m.opts.AutoMin
	period := m.opts.AutoMin + time.Duration(m.rng.Float64()*float64(span))
	if period >= m.opts.AutoMax {
		period = m.opts.AutoMax - time.Millisecond
	}
	m.auto = clock.Every(m.deps.Clock, period, func() { m.autoTick(gen) })
}

// stopAutoLocked cancels the timer and invalidates its generation
func (m *Machine) stopAutoLocked() {
	if m.auto == nil {
		return
	}
	m.auto.Stop()
	m.auto = nil
	m.autoGen++
}

// autoTick draws a random point and force then runs a crush intent
func (m *Machine) autoTick(gen uint64) {
	m.mu.Lock()
	if gen != m.autoGen || !m.state.Playing() {
		m.mu.Unlock()
		return
	}
	x := (m.rng.Float64() - 0.5) * autoSpanX
	y := (m.rng.Float64() - 0.5) * autoSpanY
	force := autoForceBase + m.rng.Float64()*autoForceSpan
	timeout := m.opts.RequestTimeout
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := m.crush(ctx, x, y, force, gen)
	switch {
	case err == nil, errors.Is(err, ErrBusy), errors.Is(err, ErrNoSession):
	default:
		log.Printf("[game] auto crush failed: %v", err)
	}
}

// AutoPeriod returns the active auto-crush interval, zero when the timer is off
func (m *Machine) AutoPeriod() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auto == nil {
		return 0
	}
	return m.auto.Period()
}
