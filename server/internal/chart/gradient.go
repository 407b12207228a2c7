package chart

import (
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Gradient is a three-stop color scale: Stops[0] at the lowest value,
// Stops[2] at the highest.
type Gradient struct {
	Stops [3]drawing.Color
}

// ParseGradient builds a Gradient from three #rrggbb strings.
func ParseGradient(hex []string) (Gradient, error) {
	var g Gradient
	if len(hex) != 3 {
		return g, fmt.Errorf("gradient needs 3 stops, got %d", len(hex))
	}
	for i, h := range hex {
		h = strings.TrimPrefix(h, "#")
		if len(h) != 6 {
			return g, fmt.Errorf("gradient stop %d: %q is not #rrggbb", i, hex[i])
		}
		g.Stops[i] = drawing.ColorFromHex(h)
	}
	return g, nil
}

// At returns the color for position t in [0, 1]; t is clamped.
func (g Gradient) At(t float64) drawing.Color {
	switch {
	case t <= 0:
		return g.Stops[0]
	case t >= 1:
		return g.Stops[2]
	case t < 0.5:
		return lerp(g.Stops[0], g.Stops[1], t*2)
	default:
		return lerp(g.Stops[1], g.Stops[2], (t-0.5)*2)
	}
}

// Hex returns the stops as #rrggbb strings.
func (g Gradient) Hex() []string {
	out := make([]string, len(g.Stops))
	for i, c := range g.Stops {
		out[i] = hexColor(c)
	}
	return out
}

func lerp(a, b drawing.Color, t float64) drawing.Color {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return drawing.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

func hexColor(c drawing.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
