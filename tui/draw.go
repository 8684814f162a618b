package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/crusher/game"
)

// Draw renders one frame
func (a *App) Draw() {
	s := a.deps.Screen
	s.Clear()

	bg := tcell.StyleDefault.Background(RgbBackground)
	s.Fill(' ', bg)

	v := a.deps.Machine.Snapshot()
	a.drawHeader(v)
	if v.Playing() {
		a.drawArena(v, bg)
	} else {
		a.drawMenu(v, bg)
	}
	a.drawFooter(v, bg)

	s.Show()
}

func (a *App) drawHeader(v game.View) {
	style := tcell.StyleDefault.Foreground(RgbHeaderText).Background(RgbHeader)
	for x := 0; x < a.width; x++ {
		a.deps.Screen.SetContent(x, 0, ' ', nil, style)
	}

	x := a.text(0, 0, " CRUSHER ", style.Bold(true))
	if v.Playing() {
		x = a.text(x, 0, fmt.Sprintf("| %s | %s ", v.Mode, v.State), style)
	}
	if v.HasSelected {
		x = a.text(x, 0, "| "+v.Selected.Name+" ", style)
	}

	if a.deps.Audio != nil {
		bg := RgbMuted
		if a.deps.Audio.Enabled() {
			bg = RgbUnmuted
		}
		label := fmt.Sprintf(" SND %d%% ", volumePercent(a.deps.Audio.Volume()))
		x = a.text(x+1, 0, label, style.Background(bg))
	}
	if a.deps.Haptic != nil {
		bg := RgbMuted
		if a.deps.Haptic.Enabled() {
			bg = RgbUnmuted
		}
		label := " VIB "
		if a.deps.Haptic.Vibrating() {
			label = " VIB~ "
		}
		a.text(x+1, 0, label, style.Background(bg))
	}
}

func (a *App) drawMenu(v game.View, bg tcell.Style) {
	y := headerRows + 1
	a.text(2, y, "Choose a mode:", bg.Foreground(RgbObject).Bold(true))
	y += 2

	names := make(map[string]string)
	for _, m := range a.deps.Machine.Modes() {
		names[m.ID] = m.Name
	}
	for i, mode := range menuModes {
		name := names[string(mode)]
		if name == "" {
			name = string(mode)
		}
		x := a.text(4, y, fmt.Sprintf("%d", i+1), bg.Foreground(RgbMenuKey).Bold(true))
		a.text(x+2, y, name, bg.Foreground(RgbObject))
		y++
	}

	y++
	if v.HasSelected {
		a.text(2, y, "Object: "+v.Selected.Name+"  (Tab to change)", bg.Foreground(RgbFooter))
	} else {
		a.text(2, y, "No objects loaded", bg.Foreground(RgbMuted))
	}
}

func (a *App) drawArena(v game.View, bg tcell.Style) {
	rows := a.arenaRows()
	if rows <= 0 {
		return
	}

	// Ripples grow and fade over their lifetime
	w, h := a.arenaPixels()
	for _, r := range v.Ripples {
		age := v.Now.Sub(r.Born).Seconds()
		a.ring(r.X+w/2, r.Y+h/2, 1+age*rippleRadius, bg.Foreground(RgbRipple))
	}

	if a.deps.Sim != nil {
		for _, p := range a.deps.Sim.Snapshot() {
			cx, cy, ok := a.pixelToCell(p.X, p.Y)
			if !ok {
				continue
			}
			style := bg.Foreground(particleColor(p))
			if p.Opacity < 0.4 {
				style = style.Dim(true)
			}
			a.deps.Screen.SetContent(cx, cy, particleGlyph(p), nil, style)
		}
	}

	// Object at arena centre, on top
	if v.HasSelected {
		glyph := objectGlyph(v.Selected.Type, v.Selected.Name)
		style := bg.Foreground(RgbObject).Bold(true)
		if v.State == game.StateCrushing {
			glyph = strings.ToLower(glyph)
			style = bg.Foreground(RgbObjectHit).Dim(true)
		}
		cx := a.width/2 - len([]rune(glyph))/2
		a.text(cx, headerRows+rows/2, glyph, style)
	}
}

// ring plots a circle of radius cells around a particle-space centre
func (a *App) ring(px, py, radius float64, style tcell.Style) {
	cx, cy, ok := a.pixelToCell(px, py)
	if !ok {
		return
	}
	steps := int(8 * radius)
	for i := 0; i < steps; i++ {
		ang := 2 * math.Pi * float64(i) / float64(steps)
		// Cells are twice as tall as wide
		x := cx + int(math.Round(math.Cos(ang)*radius))
		y := cy + int(math.Round(math.Sin(ang)*radius/2))
		if x < 0 || x >= a.width || y < headerRows || y >= headerRows+a.arenaRows() {
			continue
		}
		a.deps.Screen.SetContent(x, y, '○', nil, style)
	}
}

func (a *App) drawFooter(v game.View, bg tcell.Style) {
	y := a.height - footerRows
	style := bg.Foreground(RgbFooter)

	if v.Playing() {
		st := v.Stats
		line := fmt.Sprintf("Crushed %d  Satisfaction %g  Time %gs", st.TotalCrushed, st.TotalSatisfaction, st.SessionDuration)
		if recent := v.RecentCrushed(recentShown); len(recent) > 0 {
			line += "  Recent: " + strings.Join(recent, ", ")
		}
		a.text(0, y, line, style)
	}

	y++
	switch {
	case a.showMetrics:
		a.text(0, y, a.deps.Metrics.Line(), style.Dim(true))
	case a.Message() != "":
		a.text(0, y, a.Message(), bg.Foreground(RgbMessage))
	case v.Playing():
		a.text(0, y, "click: crush  Tab: object  Esc: end  s: sound  +/-: volume  v: vibration  d: metrics  q: quit", style.Dim(true))
	default:
		a.text(0, y, "1/2/3: start  Tab: object  s: sound  v: vibration  d: metrics  q: quit", style.Dim(true))
	}
}

// text writes s from (x, y) clipped to the screen and returns the next column
func (a *App) text(x, y int, s string, style tcell.Style) int {
	if y < 0 || y >= a.height {
		return x
	}
	for _, r := range s {
		if x >= a.width {
			break
		}
		if x >= 0 {
			a.deps.Screen.SetContent(x, y, r, nil, style)
		}
		x++
	}
	return x
}
