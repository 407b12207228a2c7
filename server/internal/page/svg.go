package page

import (
	"bytes"
	"html/template"
	"math"

	"github.com/festtally/festtally/server/internal/chart"
	"github.com/festtally/festtally/server/internal/config"
)

// Plot margins in pixels.
const (
	marginLeft   = 64.0
	marginRight  = 24.0
	marginTop    = 32.0
	marginBottom = 40.0

	barFill       = 0.7
	valueTextGap  = 6.0
	baseLabelGap  = 8.0
	valueFontSize = 14.0
)

type svgBar struct {
	X, Y, W, H float64
	Color      string

	Text         string
	TextX, TextY float64

	Label          string
	LabelX, LabelY float64
	Rotate         bool
	LabelAngle     float64
}

type svgTick struct {
	Y     float64
	Label string
}

type svgChart struct {
	Width, Height  float64
	PlotLeft       float64
	PlotRight      float64
	PlotTop        float64
	PlotBottom     float64
	BaseY          float64
	Bars           []svgBar
	Ticks          []svgTick
	ValueLabel     string
	CategoryLabel  string
	CategoryLabelY float64
	ValueBold      bool
	Empty          bool
}

// layout computes SVG geometry for spec at size.
func layout(spec *chart.Spec, size chart.Size) svgChart {
	if size.Width <= 0 || size.Height <= 0 {
		size = chart.Size{Width: config.DefaultChartWidth, Height: config.DefaultChartHeight}
	}
	w, h := float64(size.Width), float64(size.Height)
	c := svgChart{
		Width:          w,
		Height:         h,
		PlotLeft:       marginLeft,
		PlotRight:      w - marginRight,
		PlotTop:        marginTop,
		PlotBottom:     h - marginBottom,
		ValueLabel:     spec.ValueLabel,
		CategoryLabel:  spec.CategoryLabel,
		CategoryLabelY: h - marginBottom/3,
		ValueBold:      spec.ValueText.Bold,
		Empty:          len(spec.Bars) == 0,
	}

	axis := chart.ValueAxis(spec)
	plotH := c.PlotBottom - c.PlotTop
	yOf := func(v float64) float64 {
		return c.PlotTop + (axis.Max-v)/(axis.Max-axis.Min)*plotH
	}
	c.BaseY = yOf(0)

	for _, t := range axis.Ticks {
		c.Ticks = append(c.Ticks, svgTick{Y: yOf(t.Value), Label: t.Label})
	}
	if c.Empty {
		return c
	}

	slot := (c.PlotRight - c.PlotLeft) / float64(len(spec.Bars))
	bw := slot * barFill
	outside := spec.ValueText.Position != chart.TextInside
	for i, b := range spec.Bars {
		x := c.PlotLeft + float64(i)*slot + (slot-bw)/2
		top := yOf(b.Value)
		sb := svgBar{
			X:          x,
			Y:          math.Min(top, c.BaseY),
			W:          bw,
			H:          math.Abs(c.BaseY - top),
			Color:      b.Color,
			Text:       b.Text,
			TextX:      x + bw/2,
			Label:      b.Category,
			LabelX:     x + bw/2,
			Rotate:     spec.RotateLabels,
			LabelAngle: spec.LabelAngle,
		}

		// Value text sits beyond the bar end: above positive bars, below
		// negative ones.
		if outside && b.Value >= 0 {
			sb.TextY = top - valueTextGap
		} else {
			sb.TextY = top + valueTextGap + valueFontSize
		}

		if b.Value >= 0 {
			sb.LabelY = c.BaseY - baseLabelGap
		} else {
			sb.LabelY = c.BaseY + baseLabelGap + valueFontSize
		}
		c.Bars = append(c.Bars, sb)
	}
	return c
}

var svgTmpl = template.Must(template.New("svg").Parse(`<svg xmlns="http://www.w3.org/2000/svg" class="chart" role="img" viewBox="0 0 {{printf "%.0f" .Width}} {{printf "%.0f" .Height}}" width="{{printf "%.0f" .Width}}" height="{{printf "%.0f" .Height}}">
<g class="y-axis">
{{- range .Ticks}}
<line class="grid" x1="{{printf "%.1f" $.PlotLeft}}" x2="{{printf "%.1f" $.PlotRight}}" y1="{{printf "%.1f" .Y}}" y2="{{printf "%.1f" .Y}}"></line>
<text class="tick" x="{{printf "%.1f" $.PlotLeft}}" dx="-8" y="{{printf "%.1f" .Y}}" dy="4" text-anchor="end">{{.Label}}</text>
{{- end}}
<text class="axis-title" transform="translate(16 {{printf "%.1f" $.PlotTop}}) rotate(-90)" text-anchor="end">{{.ValueLabel}}</text>
</g>
<line class="baseline" x1="{{printf "%.1f" .PlotLeft}}" x2="{{printf "%.1f" .PlotRight}}" y1="{{printf "%.1f" .BaseY}}" y2="{{printf "%.1f" .BaseY}}"></line>
<g class="bars">
{{- range .Bars}}
<g class="bar">
<rect x="{{printf "%.1f" .X}}" y="{{printf "%.1f" .Y}}" width="{{printf "%.1f" .W}}" height="{{printf "%.1f" .H}}" fill="{{.Color}}"></rect>
<text class="value" x="{{printf "%.1f" .TextX}}" y="{{printf "%.1f" .TextY}}" text-anchor="middle"{{if $.ValueBold}} font-weight="bold"{{end}}>{{.Text}}</text>
{{- if .Rotate}}
<text class="label" x="{{printf "%.1f" .LabelX}}" y="{{printf "%.1f" .LabelY}}" dy="4" text-anchor="start" transform="rotate({{printf "%.0f" .LabelAngle}} {{printf "%.1f" .LabelX}} {{printf "%.1f" .LabelY}})">{{.Label}}</text>
{{- else}}
<text class="label" x="{{printf "%.1f" .LabelX}}" y="{{printf "%.1f" .LabelY}}" text-anchor="middle">{{.Label}}</text>
{{- end}}
</g>
{{- end}}
</g>
<text class="axis-title" x="{{printf "%.1f" .PlotLeft}}" y="{{printf "%.1f" .CategoryLabelY}}">{{.CategoryLabel}}</text>
{{- if .Empty}}
<text class="empty" x="{{printf "%.1f" .PlotLeft}}" dx="16" y="{{printf "%.1f" .PlotTop}}" dy="24">No standings yet</text>
{{- end}}
</svg>`))

// ChartSVG renders spec as an inline SVG fragment.
func ChartSVG(spec *chart.Spec, size chart.Size) (template.HTML, error) {
	var buf bytes.Buffer
	if err := svgTmpl.Execute(&buf, layout(spec, size)); err != nil {
		return "", &chart.RenderError{Op: "svg", Err: err}
	}
	return template.HTML(buf.String()), nil //nolint:gosec // output of html/template
}
