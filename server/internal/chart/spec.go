package chart

import (
	"fmt"
	"math"

	"github.com/festtally/festtally/pkg/types"
	"github.com/festtally/festtally/server/internal/config"
)

// Text positions for the on-bar value label.
const (
	TextOutside = "outside"
	TextInside  = "inside"
)

// rotatedLabelAngle is the organization label angle used for crowded charts.
const rotatedLabelAngle = -90.0

// Bar is one category on the chart.
type Bar struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`

	// Text is the on-bar annotation: the score as the feed wrote it.
	Text string `json:"text"`

	// Color is the gradient color for Value, as #rrggbb.
	Color string `json:"color"`
}

// TextStyle describes how bar annotations are drawn.
type TextStyle struct {
	Bold     bool   `json:"bold"`
	Position string `json:"position"`
}

// Spec is the complete, renderer-independent description of one chart.
type Spec struct {
	// CategoryLabel and ValueLabel are the feed's column headers.
	CategoryLabel string `json:"category_label"`
	ValueLabel    string `json:"value_label"`

	// Bars are in ranked order, left to right.
	Bars []Bar `json:"bars"`

	// Min and Max are the smallest and largest bar values; both 0 when empty.
	Min float64 `json:"min"`
	Max float64 `json:"max"`

	ValueText TextStyle `json:"value_text"`

	// RotateLabels is set when there are more bars than the rotation
	// threshold; LabelAngle is then rotatedLabelAngle, else 0.
	RotateLabels bool    `json:"rotate_labels"`
	LabelAngle   float64 `json:"label_angle"`

	// Gradient lists the three color stops, lightest first.
	Gradient []string `json:"gradient"`
}

// Categories returns the bar categories in order.
func (s *Spec) Categories() []string {
	out := make([]string, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Category
	}
	return out
}

// Labels names the two feed columns a chart is built from.
type Labels struct {
	Category string
	Value    string
}

// Builder maps ranked standings to a Spec.
type Builder struct {
	gradient    Gradient
	rotateAfter int
}

// NewBuilder creates a Builder from the chart configuration.
func NewBuilder(cfg config.ChartConfig) (*Builder, error) {
	g, err := ParseGradient(cfg.Gradient)
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	return &Builder{gradient: g, rotateAfter: cfg.RotateAfter}, nil
}

// Build produces one Bar per standing in the order given. Colors only encode
// values; they never alter them. An empty input yields a Spec with zero bars.
func (b *Builder) Build(ranked []types.Standing, labels Labels) (*Spec, error) {
	spec := &Spec{
		CategoryLabel: labels.Category,
		ValueLabel:    labels.Value,
		Bars:          make([]Bar, 0, len(ranked)),
		ValueText:     TextStyle{Bold: true, Position: TextOutside},
		Gradient:      b.gradient.Hex(),
	}
	if len(ranked) == 0 {
		return spec, nil
	}

	spec.Min, spec.Max = math.Inf(1), math.Inf(-1)
	for _, s := range ranked {
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
			return nil, &RenderError{Op: "build", Err: fmt.Errorf("score for %q is not finite", s.Organization)}
		}
		spec.Min = math.Min(spec.Min, s.Score)
		spec.Max = math.Max(spec.Max, s.Score)
	}

	for _, s := range ranked {
		text := s.ScoreText
		if text == "" {
			text = fmt.Sprint(s.Score)
		}
		spec.Bars = append(spec.Bars, Bar{
			Category: s.Organization,
			Value:    s.Score,
			Text:     text,
			Color:    hexColor(b.gradient.At(position(s.Score, spec.Min, spec.Max))),
		})
	}

	if len(spec.Bars) > b.rotateAfter {
		spec.RotateLabels = true
		spec.LabelAngle = rotatedLabelAngle
	}
	return spec, nil
}

// position maps v into [0, 1] between lo and hi. A flat range maps to the
// middle stop.
func position(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}
