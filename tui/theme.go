package tui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/crusher/particle"
)

var (
	RgbBackground = tcell.NewRGBColor(26, 27, 38)    // Tokyo Night background
	RgbHeader     = tcell.NewRGBColor(135, 206, 250) // Light sky blue
	RgbHeaderText = tcell.NewRGBColor(0, 0, 0)
	RgbFooter     = tcell.NewRGBColor(180, 180, 180)
	RgbObject     = tcell.NewRGBColor(255, 255, 255)
	RgbObjectHit  = tcell.NewRGBColor(255, 80, 80)
	RgbRipple     = tcell.NewRGBColor(100, 150, 255)
	RgbMenuKey    = tcell.NewRGBColor(255, 165, 0)
	RgbMuted      = tcell.NewRGBColor(200, 50, 50)
	RgbUnmuted    = tcell.NewRGBColor(0, 200, 0)
	RgbMessage    = tcell.NewRGBColor(255, 255, 0)
)

// materialColors tints burst particles
var materialColors = map[particle.Material]tcell.Color{
	particle.MaterialDefault: tcell.NewRGBColor(200, 200, 200),
	particle.MaterialMetal:   tcell.NewRGBColor(192, 192, 192),
	particle.MaterialPaper:   tcell.NewRGBColor(210, 180, 140),
	particle.MaterialGlass:   tcell.NewRGBColor(173, 216, 230),
	particle.MaterialPlastic: tcell.NewRGBColor(255, 99, 71),
	particle.MaterialMixed:   tcell.NewRGBColor(0, 200, 200),
}

// particleColor resolves sparkles by their accent name, bursts by material
func particleColor(p particle.Particle) tcell.Color {
	if p.Color != "" {
		if c := tcell.GetColor(p.Color); c != tcell.ColorDefault {
			return c
		}
	}
	if c, ok := materialColors[p.Material]; ok {
		return c
	}
	return materialColors[particle.MaterialDefault]
}

// particleGlyph picks a rune by current size
func particleGlyph(p particle.Particle) rune {
	if p.Material == particle.MaterialSparkle {
		return '*'
	}
	switch {
	case p.Size >= 4:
		return '●'
	case p.Size >= 2:
		return '•'
	default:
		return '·'
	}
}

// objectGlyphs stand in for the object art
var objectGlyphs = map[string]string{
	"can":         "[=CAN=]",
	"box":         "[#BOX#]",
	"electronics": "[:PHONE:]",
	"glass":       "(|BOTTLE|)",
	"plastic":     "(~PLASTIC~)",
}

func objectGlyph(objType, name string) string {
	if g, ok := objectGlyphs[objType]; ok {
		return g
	}
	if name != "" {
		return "[" + name + "]"
	}
	return "[?]"
}
