package chart

import (
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Size is the pixel size of an exported chart.
type Size struct {
	Width  int
	Height int
}

// RenderPNG draws spec as a PNG bar chart.
func RenderPNG(w io.Writer, spec *Spec, size Size) error {
	return render(w, spec, size, gochart.PNG, "png")
}

// RenderSVG draws spec as an SVG bar chart.
func RenderSVG(w io.Writer, spec *Spec, size Size) error {
	return render(w, spec, size, gochart.SVG, "svg")
}

func render(w io.Writer, spec *Spec, size Size, rp gochart.RendererProvider, op string) error {
	bc := barChart(spec, size)
	if err := bc.Render(rp, w); err != nil {
		return &RenderError{Op: op, Err: err}
	}
	return nil
}

// barChart converts a Spec into a go-chart BarChart. go-chart refuses to draw
// zero bars, so an empty spec gets one invisible placeholder bar and a fixed
// unit range, which leaves only the axes visible.
func barChart(spec *Spec, size Size) gochart.BarChart {
	bottom := 24
	if spec.RotateLabels {
		bottom = 96
	}

	bars := make([]gochart.Value, 0, len(spec.Bars))
	for _, b := range spec.Bars {
		fill := drawing.ColorFromHex(b.Color[1:])
		bars = append(bars, gochart.Value{
			Label: b.Category,
			Value: b.Value,
			Style: gochart.Style{
				FillColor:   fill,
				StrokeColor: fill,
				StrokeWidth: 1,
			},
		})
	}

	axis := ValueAxis(spec)
	if len(bars) == 0 {
		bars = append(bars, gochart.Value{
			Label: " ",
			Value: 0,
			Style: gochart.Style{
				FillColor:   drawing.ColorTransparent,
				StrokeColor: drawing.ColorTransparent,
			},
		})
	}

	slot := (size.Width - 120) / len(bars)
	if slot < 2 {
		slot = 2
	}
	barWidth := int(math.Max(1, float64(slot)*0.7))

	return gochart.BarChart{
		Title:      spec.ValueLabel,
		Width:      size.Width,
		Height:     size.Height,
		BarWidth:   barWidth,
		BarSpacing: slot - barWidth,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: bottom},
		},
		XAxis: gochart.Style{
			TextRotationDegrees: -spec.LabelAngle,
		},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: axis.Min, Max: axis.Max},
			Ticks: axis.Ticks,
		},
		UseBaseValue: true,
		BaseValue:    0,
		Bars:         bars,
	}
}
