package game

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/crusher/api"
	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/particle"
)

// Intent randomization
const (
	clickForceBase = 0.5
	clickForceSpan = 0.5
	autoForceBase  = 0.2
	autoForceSpan  = 0.8
	autoSpanX      = 400.0
	autoSpanY      = 300.0
)

// fallbackModes is used when the backend mode list is unavailable
var fallbackModes = []api.Mode{
	{ID: string(ModeInteractive), Name: "Interactive Mode", Icon: "👆"},
	{ID: string(ModeAuto), Name: "Auto Mode", Icon: "🔄"},
	{ID: string(ModeMixed), Name: "Mixed Mode", Icon: "🎭"},
}

// Machine is the session state machine
// It owns the session id, local statistics, the auto-crush timer and the fan-out of crush results
// All methods are safe for concurrent use; backend calls are made without holding the lock
type Machine struct {
	mu   sync.Mutex
	deps Deps
	opts Options
	rng  *rand.Rand

	state     State
	mode      Mode
	sessionID string
	epoch     uint64 // bumped on every session start and end
	starting  bool
	closed    bool

	objects  []api.Object
	modes    []api.Mode
	selected int // index into objects, -1 when none

	stats      api.Stats
	crushCount int
	lastResult api.CrushResult
	hasResult  bool

	crushGen  uint64
	idleTimer clock.Timer

	// fanMu spans the stale check through feedback so a session cannot end mid fan-out
	// Lock order: fanMu before mu
	fanMu sync.Mutex

	auto    *clock.Task
	autoGen uint64

	ripples   []Ripple
	rippleSeq uint64

	crushes  *atomic.Int64
	failures *atomic.Int64
	stale    *atomic.Int64
}

// NewMachine creates a machine in the menu state
func NewMachine(deps Deps, opts Options) *Machine {
	def := DefaultOptions()
	if opts.ArenaWidth <= 0 || opts.ArenaHeight <= 0 {
		opts.ArenaWidth, opts.ArenaHeight = def.ArenaWidth, def.ArenaHeight
	}
	if opts.AutoMin <= 0 || opts.AutoMax <= opts.AutoMin {
		opts.AutoMin, opts.AutoMax = def.AutoMin, def.AutoMax
	}
	if opts.MilestoneEvery <= 0 {
		opts.MilestoneEvery = def.MilestoneEvery
	}
	if opts.RippleTTL <= 0 {
		opts.RippleTTL = def.RippleTTL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Machine{
		deps:     deps,
		opts:     opts,
		rng:      rng,
		selected: -1,
		modes:    append([]api.Mode(nil), fallbackModes...),
		crushes:  deps.Metrics.Counter("game.crushes"),
		failures: deps.Metrics.Counter("game.failures"),
		stale:    deps.Metrics.Counter("game.stale"),
	}
}

// LoadCatalog fetches objects and modes; the first object is selected if none is
// A failing mode list keeps the built-in modes
func (m *Machine) LoadCatalog(ctx context.Context) error {
	objs, err := m.deps.Backend.Objects(ctx)
	if err != nil {
		m.failures.Add(1)
		log.Printf("[game] load objects failed: %v", err)
		return fmt.Errorf("load objects: %w", err)
	}
	modes, err := m.deps.Backend.Modes(ctx)
	if err != nil {
		log.Printf("[game] load modes failed, using built-in modes: %v", err)
		modes = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var keep string
	if m.selected >= 0 {
		keep = m.objects[m.selected].ID
	}
	m.objects = objs
	m.selected = -1
	for i, o := range objs {
		if o.ID == keep && keep != "" {
			m.selected = i
		}
	}
	if m.selected < 0 && len(objs) > 0 {
		m.selected = 0
	}
	if len(modes) > 0 {
		m.modes = modes
	}
	return nil
}

// Objects returns the loaded catalog
func (m *Machine) Objects() []api.Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]api.Object(nil), m.objects...)
}

// Modes returns the available modes
func (m *Machine) Modes() []api.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]api.Mode(nil), m.modes...)
}

// SelectObject makes id the crush target and restarts the auto timer
func (m *Machine) SelectObject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, o := range m.objects {
		if o.ID == id {
			m.selectLocked(i)
			return nil
		}
	}
	return ErrNoObject
}

// CycleObject moves the selection by delta, wrapping around the catalog
func (m *Machine) CycleObject(delta int) (api.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.objects)
	if n == 0 {
		return api.Object{}, ErrNoObject
	}
	i := m.selected
	if i < 0 {
		i = 0
	} else {
		i = ((i+delta)%n + n) % n
	}
	m.selectLocked(i)
	return m.objects[i], nil
}

func (m *Machine) selectLocked(i int) {
	changed := m.selected != i
	m.selected = i
	if changed && m.state.Playing() && m.mode.Timed() {
		m.startAutoLocked()
	}
}

// SelectMode opens a backend session in mode and enters playing
// On failure the machine stays in the menu
func (m *Machine) SelectMode(ctx context.Context, mode string) error {
	md, err := ParseMode(mode)
	if err != nil {
		return err
	}

	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.state != StateMenu:
		m.mu.Unlock()
		return ErrSessionActive
	case m.starting:
		m.mu.Unlock()
		return ErrBusy
	}
	m.starting = true
	m.mu.Unlock()

	id, err := m.deps.Backend.StartSession(ctx, string(md))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false

	if err != nil {
		m.failures.Add(1)
		log.Printf("[game] start session failed: %v", err)
		return fmt.Errorf("start session: %w", err)
	}
	if m.closed {
		return ErrClosed
	}

	m.epoch++
	m.sessionID = id
	m.mode = md
	m.state = StateIdle
	m.resetLocalLocked()
	if md.Timed() {
		m.startAutoLocked()
	}
	log.Printf("[game] session %s started (mode=%s)", id, md)
	return nil
}

// Click crushes at an arena-centred point with a random force in [0.5, 1.0)
func (m *Machine) Click(ctx context.Context, x, y float64) error {
	m.mu.Lock()
	if !m.state.Playing() {
		m.mu.Unlock()
		return ErrNoSession
	}
	if !m.mode.Clickable() {
		m.mu.Unlock()
		return ErrModeDisallows
	}
	force := clickForceBase + m.rng.Float64()*clickForceSpan
	m.mu.Unlock()

	return m.Crush(ctx, x, y, force)
}

// Crush runs one crush intent: local burst and ripple, backend call, then result fan-out
// Responses for a session that has since ended are dropped
func (m *Machine) Crush(ctx context.Context, x, y, force float64) error {
	return m.crush(ctx, x, y, force, 0)
}

// crush is the intent body; autoGen is non-zero for timer intents and must still be current
func (m *Machine) crush(ctx context.Context, x, y, force float64, autoGen uint64) error {
	m.mu.Lock()
	if autoGen != 0 && autoGen != m.autoGen {
		m.mu.Unlock()
		return nil
	}
	switch {
	case !m.state.Playing():
		m.mu.Unlock()
		return ErrNoSession
	case m.state == StateCrushing:
		m.mu.Unlock()
		return ErrBusy
	case m.selected < 0:
		m.mu.Unlock()
		return ErrNoObject
	}

	m.state = StateCrushing
	m.crushGen++
	gen := m.crushGen
	epoch := m.epoch
	sid := m.sessionID
	obj := m.objects[m.selected]
	m.addRippleLocked(x, y)
	px, py := x+m.opts.ArenaWidth/2, y+m.opts.ArenaHeight/2
	m.mu.Unlock()

	material := particle.ParseMaterial(obj.Particles)
	if m.deps.Particles != nil {
		m.deps.Particles.SpawnBurst(px, py, material, force)
	}

	res, err := m.deps.Backend.Crush(ctx, sid, api.CrushRequest{
		ObjectID: obj.ID,
		Force:    force,
		Position: api.Position{X: x, Y: y},
	})

	m.fanMu.Lock()
	m.mu.Lock()
	if m.epoch != epoch || m.sessionID != sid {
		m.mu.Unlock()
		m.fanMu.Unlock()
		m.stale.Add(1)
		return nil
	}
	if err != nil {
		if m.crushGen == gen && m.state == StateCrushing {
			m.state = StateIdle
		}
		m.mu.Unlock()
		m.fanMu.Unlock()
		m.failures.Add(1)
		log.Printf("[game] crush %s failed: %v", obj.ID, err)
		return fmt.Errorf("crush %s: %w", obj.ID, err)
	}

	m.crushCount++
	count := m.crushCount
	m.lastResult = res
	m.hasResult = true
	m.scheduleIdleLocked(gen, res.AnimationDuration)
	m.mu.Unlock()

	m.crushes.Add(1)
	m.fanOut(obj, res, material, px, py, force, count)
	m.fanMu.Unlock()

	if err := m.RefreshStats(ctx); err != nil {
		log.Printf("[game] stats refresh after crush failed: %v", err)
	}
	return nil
}

// scheduleIdleLocked returns to idle after the reported animation
func (m *Machine) scheduleIdleLocked(gen uint64, seconds float64) {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	d := time.Duration(math.Round(seconds * float64(time.Second)))
	if d <= 0 {
		m.state = StateIdle
		return
	}
	epoch := m.epoch
	m.idleTimer = m.deps.Clock.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch == epoch && m.crushGen == gen && m.state == StateCrushing {
			m.state = StateIdle
		}
	})
}

// fanOut drives audio, haptics and the sparkle accent for an applied result
func (m *Machine) fanOut(obj api.Object, res api.CrushResult, material particle.Material, px, py, force float64, count int) {
	objType, satisfaction := obj.Type, obj.SatisfactionScore
	if res.HasObject {
		objType, satisfaction = res.Object.Type, res.Object.SatisfactionScore
	}
	sound := res.Sound
	if sound == "" {
		sound = obj.Sound
	}

	if m.deps.Audio != nil {
		m.deps.Audio.PlayEffect(sound)
	}
	if m.deps.Haptics != nil {
		m.deps.Haptics.PlayForObject(objType, satisfaction, force)
		if count%m.opts.MilestoneEvery == 0 {
			m.deps.Haptics.PlayFeedback("milestone")
		}
	}
	if m.deps.Particles != nil {
		accent := material
		if res.Particles != "" {
			accent = particle.ParseMaterial(res.Particles)
		}
		m.deps.Particles.SpawnSparkle(px, py, SparkleColor(accent))
	}
}

// RefreshStats pulls session statistics and merges them monotonically
func (m *Machine) RefreshStats(ctx context.Context) error {
	m.mu.Lock()
	if !m.state.Playing() {
		m.mu.Unlock()
		return ErrNoSession
	}
	sid, epoch := m.sessionID, m.epoch
	m.mu.Unlock()

	st, err := m.deps.Backend.Stats(ctx, sid)
	if err != nil {
		m.failures.Add(1)
		return fmt.Errorf("stats: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.sessionID != sid {
		m.stale.Add(1)
		return nil
	}
	m.stats = mergeStats(m.stats, st)
	return nil
}

// mergeStats never lets counters move backwards within a session
func mergeStats(cur, next api.Stats) api.Stats {
	out := api.Stats{
		TotalCrushed:      max(cur.TotalCrushed, next.TotalCrushed),
		TotalSatisfaction: math.Max(cur.TotalSatisfaction, next.TotalSatisfaction),
		SessionDuration:   math.Max(cur.SessionDuration, next.SessionDuration),
		ObjectsCrushed:    cur.ObjectsCrushed,
	}
	if len(next.ObjectsCrushed) > len(cur.ObjectsCrushed) {
		out.ObjectsCrushed = append([]string(nil), next.ObjectsCrushed...)
	}
	return out
}

// EndSession closes the session on the backend, then returns to the menu
// A backend failure leaves the session playing
func (m *Machine) EndSession(ctx context.Context) error {
	m.mu.Lock()
	if !m.state.Playing() {
		m.mu.Unlock()
		return ErrNoSession
	}
	sid, epoch := m.sessionID, m.epoch
	m.mu.Unlock()

	if err := m.deps.Backend.EndSession(ctx, sid); err != nil {
		m.failures.Add(1)
		log.Printf("[game] end session %s failed: %v", sid, err)
		return fmt.Errorf("end session: %w", err)
	}

	m.fanMu.Lock()
	defer m.fanMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	// Already torn down by Close or a concurrent end
	if m.epoch != epoch {
		return nil
	}
	m.teardownLocked()
	log.Printf("[game] session %s ended", sid)
	return nil
}

// teardownLocked cancels every timer and resets session state
func (m *Machine) teardownLocked() {
	m.stopAutoLocked()
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	m.epoch++
	m.sessionID = ""
	m.mode = ""
	m.state = StateMenu
	m.resetLocalLocked()
}

func (m *Machine) resetLocalLocked() {
	m.stats = api.Stats{}
	m.crushCount = 0
	m.lastResult = api.CrushResult{}
	m.hasResult = false
}

// Close cancels timers and ends any open session, idempotent
func (m *Machine) Close() error {
	m.fanMu.Lock()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.fanMu.Unlock()
		return nil
	}
	m.closed = true
	playing := m.state.Playing()
	sid := m.sessionID
	if playing {
		m.teardownLocked()
	}
	m.ripples = nil
	m.mu.Unlock()
	m.fanMu.Unlock()

	if !playing {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.RequestTimeout)
	defer cancel()
	if err := m.deps.Backend.EndSession(ctx, sid); err != nil {
		return fmt.Errorf("end session on close: %w", err)
	}
	return nil
}

// SetArena updates the arena size used to map crush points into particle space
func (m *Machine) SetArena(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	m.mu.Lock()
	m.opts.ArenaWidth, m.opts.ArenaHeight = width, height
	m.mu.Unlock()
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of everything the view renders
func (m *Machine) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.deps.Clock.Now()
	m.pruneRipplesLocked(now)

	v := View{
		State:      m.state,
		Mode:       m.mode,
		SessionID:  m.sessionID,
		Stats:      m.stats,
		CrushCount: m.crushCount,
		Ripples:    append([]Ripple(nil), m.ripples...),
		LastResult: m.lastResult,
		HasResult:  m.hasResult,
		Now:        now,
	}
	v.Stats.ObjectsCrushed = append([]string(nil), m.stats.ObjectsCrushed...)
	if m.selected >= 0 {
		v.Selected = m.objects[m.selected]
		v.HasSelected = true
	}
	return v
}

func (m *Machine) addRippleLocked(x, y float64) {
	now := m.deps.Clock.Now()
	m.pruneRipplesLocked(now)
	m.rippleSeq++
	m.ripples = append(m.ripples, Ripple{ID: m.rippleSeq, X: x, Y: y, Born: now})
}

// pruneRipplesLocked drops ripples older than the ripple lifetime
func (m *Machine) pruneRipplesLocked(now time.Time) {
	kept := m.ripples[:0]
	for _, r := range m.ripples {
		if now.Sub(r.Born) < m.opts.RippleTTL {
			kept = append(kept, r)
		}
	}
	m.ripples = kept
}
