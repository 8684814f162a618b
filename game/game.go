package game

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/lixenwraith/crusher/api"
	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/particle"
	"github.com/lixenwraith/crusher/status"
)

var (
	ErrNoSession     = errors.New("no active session")
	ErrSessionActive = errors.New("session already active")
	ErrBusy          = errors.New("crush in progress")
	ErrNoObject      = errors.New("no object selected")
	ErrModeDisallows = errors.New("mode does not accept clicks")
	ErrUnknownMode   = errors.New("unknown game mode")
	ErrClosed        = errors.New("machine closed")
)

// State of the session machine
// Idle and Crushing are the two phases of a playing session
type State uint8

const (
	StateMenu State = iota
	StateIdle
	StateCrushing
	StatePaused // reserved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCrushing:
		return "crushing"
	case StatePaused:
		return "paused"
	default:
		return "menu"
	}
}

// Playing reports whether a session is open
func (s State) Playing() bool {
	return s == StateIdle || s == StateCrushing
}

// Mode is fixed for the lifetime of a session
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeAuto        Mode = "auto"
	ModeMixed       Mode = "mixed"
)

// ParseMode validates a mode id
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInteractive, ModeAuto, ModeMixed:
		return m, nil
	}
	return "", ErrUnknownMode
}

// Timed reports whether the mode runs the auto-crush timer
func (m Mode) Timed() bool {
	return m == ModeAuto || m == ModeMixed
}

// Clickable reports whether arena clicks crush in this mode
func (m Mode) Clickable() bool {
	return m == ModeInteractive || m == ModeMixed
}

// Backend is the REST surface the machine drives, satisfied by *api.Client
type Backend interface {
	Objects(ctx context.Context) ([]api.Object, error)
	Modes(ctx context.Context) ([]api.Mode, error)
	StartSession(ctx context.Context, mode string) (string, error)
	Crush(ctx context.Context, sessionID string, req api.CrushRequest) (api.CrushResult, error)
	Stats(ctx context.Context, sessionID string) (api.Stats, error)
	EndSession(ctx context.Context, sessionID string) error
}

// Particles receives bursts and sparkles in particle space
type Particles interface {
	SpawnBurst(x, y float64, material particle.Material, intensity float64) int
	SpawnSparkle(x, y float64, color string) int
}

// Audio plays crush sounds by id
type Audio interface {
	PlayEffect(id string) bool
}

// Haptics plays crush and feedback vibrations
type Haptics interface {
	PlayForObject(objectType string, satisfaction, force float64) bool
	PlayFeedback(kind string) bool
}

// Deps are the collaborators of a Machine; only Backend is required
type Deps struct {
	Backend   Backend
	Particles Particles
	Audio     Audio
	Haptics   Haptics
	Clock     clock.Clock
	Rand      *rand.Rand
	Metrics   *status.Registry
}

// Options tune arena geometry and timing
type Options struct {
	ArenaWidth     float64
	ArenaHeight    float64
	AutoMin        time.Duration
	AutoMax        time.Duration // exclusive
	MilestoneEvery int
	RippleTTL      time.Duration
	RequestTimeout time.Duration
}

// DefaultOptions returns an 800x600 arena with a [3s, 5s) auto window
func DefaultOptions() Options {
	return Options{
		ArenaWidth:     800,
		ArenaHeight:    600,
		AutoMin:        3 * time.Second,
		AutoMax:        5 * time.Second,
		MilestoneEvery: 10,
		RippleTTL:      time.Second,
		RequestTimeout: api.DefaultTimeout,
	}
}

// Ripple marks a crush point in arena-centred coordinates
type Ripple struct {
	ID   uint64
	X, Y float64
	Born time.Time
}

// View is an immutable snapshot for rendering
type View struct {
	State       State
	Mode        Mode
	SessionID   string
	Selected    api.Object
	HasSelected bool
	Stats       api.Stats
	CrushCount  int
	Ripples     []Ripple
	LastResult  api.CrushResult
	HasResult   bool
	Now         time.Time
}

// Playing reports whether the view shows an open session
func (v View) Playing() bool {
	return v.State.Playing()
}

// RecentCrushed returns up to n of the most recently crushed object ids
func (v View) RecentCrushed(n int) []string {
	ids := v.Stats.ObjectsCrushed
	if n <= 0 || len(ids) <= n {
		return ids
	}
	return ids[len(ids)-n:]
}

// sparkleColors tints the accent ring by particle material
var sparkleColors = map[particle.Material]string{
	particle.MaterialMetal:   "silver",
	particle.MaterialPaper:   "tan",
	particle.MaterialMixed:   "cyan",
	particle.MaterialGlass:   "lightblue",
	particle.MaterialPlastic: "red",
}

// SparkleColor returns the accent color for a material, white when unmapped
func SparkleColor(m particle.Material) string {
	if c, ok := sparkleColors[m]; ok {
		return c
	}
	return "white"
}
