package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/crusher/audio"
	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/game"
	"github.com/lixenwraith/crusher/haptic"
	"github.com/lixenwraith/crusher/particle"
	"github.com/lixenwraith/crusher/status"
)

const (
	headerRows   = 1
	footerRows   = 2
	messageTTL   = 3 * time.Second
	volumeStep   = 0.1
	recentShown  = 5
	rippleRadius = 4.0 // cells at end of life
)

// menuModes maps menu keys to mode ids
var menuModes = []game.Mode{game.ModeInteractive, game.ModeAuto, game.ModeMixed}

// Deps are the components the terminal front end drives
// Audio and Haptic may be nil
type Deps struct {
	Screen  tcell.Screen
	Machine *game.Machine
	Sim     *particle.Simulation
	Audio   *audio.Engine
	Haptic  *haptic.Engine
	Metrics *status.Registry
	Clock   clock.Clock
}

// Options tune cell geometry and cadence
type Options struct {
	CellWidth      int // arena pixels per cell column
	CellHeight     int // arena pixels per cell row
	FrameInterval  time.Duration
	RequestTimeout time.Duration
}

// DefaultOptions maps 8x16 pixels to a cell at roughly 60 frames per second
func DefaultOptions() Options {
	return Options{
		CellWidth:      8,
		CellHeight:     16,
		FrameInterval:  16 * time.Millisecond,
		RequestTimeout: 15 * time.Second,
	}
}

// App is the terminal arena: it renders machine snapshots and particles and turns input into intents
type App struct {
	deps Deps
	opts Options

	width, height int // screen cells
	showMetrics   bool
	lastButtons   tcell.ButtonMask

	mu        sync.Mutex
	message   string
	messageAt time.Time

	// spawn runs backend-bound work off the event loop
	spawn func(func())
}

// NewApp wires the front end and sizes the arena to the current screen
func NewApp(deps Deps, opts Options) *App {
	def := DefaultOptions()
	if opts.CellWidth <= 0 || opts.CellHeight <= 0 {
		opts.CellWidth, opts.CellHeight = def.CellWidth, def.CellHeight
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = def.FrameInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}

	a := &App{
		deps:  deps,
		opts:  opts,
		spawn: func(f func()) { go f() },
	}
	a.resize()
	return a
}

// Run polls input and draws frames until ctx is done or the user quits
func (a *App) Run(ctx context.Context) error {
	a.deps.Screen.EnableMouse()
	a.deps.Screen.HideCursor()

	ticker := time.NewTicker(a.opts.FrameInterval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.deps.Screen.PollEvent()
			if ev == nil {
				close(eventChan)
				return
			}
			eventChan <- ev
		}
	}()

	a.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-eventChan:
			if !ok {
				return nil
			}
			if !a.HandleEvent(ev) {
				return nil
			}

		case <-ticker.C:
			a.Draw()
		}
	}
}

// HandleEvent dispatches one tcell event, false means quit
func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.HandleKey(ev.Key(), ev.Rune())

	case *tcell.EventMouse:
		buttons := ev.Buttons()
		pressed := buttons&tcell.Button1 != 0 && a.lastButtons&tcell.Button1 == 0
		a.lastButtons = buttons
		if pressed {
			x, y := ev.Position()
			a.HandleClick(x, y)
		}

	case *tcell.EventResize:
		a.resize()
		a.deps.Screen.Sync()
	}
	return true
}

// HandleKey applies a key press, false means quit
func (a *App) HandleKey(key tcell.Key, r rune) bool {
	switch key {
	case tcell.KeyCtrlC:
		return false
	case tcell.KeyEscape:
		if a.deps.Machine.State().Playing() {
			a.intent("end session", a.deps.Machine.EndSession)
		}
		return true
	case tcell.KeyTab:
		a.cycle(1)
		return true
	case tcell.KeyBacktab:
		a.cycle(-1)
		return true
	case tcell.KeyRune:
	default:
		return true
	}

	switch r {
	case 'q':
		return false
	case '1', '2', '3':
		mode := menuModes[r-'1']
		a.intent("start "+string(mode), func(ctx context.Context) error {
			return a.deps.Machine.SelectMode(ctx, string(mode))
		})
	case 's':
		if a.deps.Audio != nil {
			a.notify(onOff("Sound", a.deps.Audio.Toggle()))
		}
	case '+', '=':
		a.nudgeVolume(volumeStep)
	case '-', '_':
		a.nudgeVolume(-volumeStep)
	case 'v':
		if a.deps.Haptic != nil {
			a.notify(onOff("Vibration", a.deps.Haptic.Toggle()))
		}
	case 'd':
		a.showMetrics = !a.showMetrics
	}
	return true
}

// HandleClick crushes at the arena point under cell (cx, cy)
func (a *App) HandleClick(cx, cy int) {
	x, y, ok := a.cellToArena(cx, cy)
	if !ok {
		return
	}
	a.intent("crush", func(ctx context.Context) error {
		return a.deps.Machine.Click(ctx, x, y)
	})
}

// intent runs a backend-bound machine call with a timeout and reports failures
func (a *App) intent(what string, fn func(ctx context.Context) error) {
	timeout := a.opts.RequestTimeout
	a.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := fn(ctx)
		switch {
		case err == nil, errors.Is(err, game.ErrBusy):
		case errors.Is(err, game.ErrModeDisallows):
			a.notify("Auto mode crushes on its own")
		case errors.Is(err, game.ErrNoSession):
			a.notify("Pick a mode first (1/2/3)")
		default:
			log.Printf("[tui] %s failed: %v", what, err)
			a.notify(fmt.Sprintf("%s failed: %v", what, err))
		}
	})
}

func (a *App) cycle(delta int) {
	obj, err := a.deps.Machine.CycleObject(delta)
	if err != nil {
		a.notify("No objects loaded")
		return
	}
	a.notify("Selected " + obj.Name)
}

func (a *App) nudgeVolume(delta float64) {
	if a.deps.Audio == nil {
		return
	}
	a.deps.Audio.SetVolume(a.deps.Audio.Volume() + delta)
	a.notify(fmt.Sprintf("Volume %d%%", volumePercent(a.deps.Audio.Volume())))
}

func (a *App) notify(msg string) {
	a.mu.Lock()
	a.message = msg
	a.messageAt = a.deps.Clock.Now()
	a.mu.Unlock()
}

// Message returns the status message while it is fresh
func (a *App) Message() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.message == "" || a.deps.Clock.Now().Sub(a.messageAt) >= messageTTL {
		return ""
	}
	return a.message
}

// resize fits the arena pixel space to the cells between header and footer
func (a *App) resize() {
	a.width, a.height = a.deps.Screen.Size()
	w, h := a.arenaPixels()
	if w <= 0 || h <= 0 {
		return
	}
	a.deps.Machine.SetArena(w, h)
	if a.deps.Sim != nil {
		a.deps.Sim.SetViewport(w, h)
	}
}

func (a *App) arenaRows() int {
	return a.height - headerRows - footerRows
}

func (a *App) arenaPixels() (float64, float64) {
	return float64(a.width * a.opts.CellWidth), float64(a.arenaRows() * a.opts.CellHeight)
}

// cellToArena maps a cell to arena-centred coordinates at the cell centre
func (a *App) cellToArena(cx, cy int) (float64, float64, bool) {
	row := cy - headerRows
	if cx < 0 || cx >= a.width || row < 0 || row >= a.arenaRows() {
		return 0, 0, false
	}
	w, h := a.arenaPixels()
	px := float64(cx*a.opts.CellWidth) + float64(a.opts.CellWidth)/2
	py := float64(row*a.opts.CellHeight) + float64(a.opts.CellHeight)/2
	return px - w/2, py - h/2, true
}

// pixelToCell maps particle space to a screen cell
func (a *App) pixelToCell(px, py float64) (int, int, bool) {
	if px < 0 || py < 0 {
		return 0, 0, false
	}
	cx := int(px) / a.opts.CellWidth
	row := int(py) / a.opts.CellHeight
	if cx >= a.width || row >= a.arenaRows() {
		return 0, 0, false
	}
	return cx, row + headerRows, true
}

func onOff(what string, on bool) string {
	if on {
		return what + " on"
	}
	return what + " off"
}

func volumePercent(v float64) int {
	return int(v*100 + 0.5)
}
