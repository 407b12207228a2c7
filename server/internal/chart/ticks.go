package chart

import (
	"fmt"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
)

// yTickTarget is the preferred number of value-axis ticks.
const yTickTarget = 5

// Axis is the value axis shared by the raster and HTML renderers.
type Axis struct {
	Min, Max float64
	Ticks    []gochart.Tick
}

// ValueAxis returns the value axis for spec: it always includes zero, leaves
// headroom above the tallest bar for its annotation, and is snapped outward to
// round tick values.
func ValueAxis(spec *Spec) Axis {
	lo, hi := axisRange(spec)
	ticks := niceTicks(lo, hi, yTickTarget)
	if len(ticks) >= 2 {
		lo, hi = ticks[0].Value, ticks[len(ticks)-1].Value
	}
	return Axis{Min: lo, Max: hi, Ticks: ticks}
}

// axisRange returns a value range that always includes zero, with a little
// headroom above the tallest bar.
func axisRange(spec *Spec) (float64, float64) {
	lo := math.Min(0, spec.Min)
	hi := math.Max(0, spec.Max)
	if hi == lo {
		return lo, lo + 1
	}
	return lo, hi + (hi-lo)*0.1
}

// niceTicks picks round tick values covering [min, max], aiming for about n
// ticks with steps of 1, 2, 2.5 or 5 times a power of ten.
func niceTicks(min, max float64, n int) []gochart.Tick {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	bestStep, bestScore := mag, math.MaxFloat64
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		step := c * mag
		count := math.Max(2, math.Ceil(span/step))
		if score := math.Abs(count - float64(n)); score < bestScore {
			bestScore, bestStep = score, step
		}
	}

	start := math.Floor(min/bestStep) * bestStep
	end := math.Ceil(max/bestStep) * bestStep
	var ticks []gochart.Tick
	for i := 0; ; i++ {
		v := start + float64(i)*bestStep
		if v > end+bestStep/2 || len(ticks) > n+2 {
			break
		}
		ticks = append(ticks, gochart.Tick{Value: v, Label: formatTick(v, bestStep)})
	}
	return ticks
}

// formatTick prints v with just enough decimals for step.
func formatTick(v, step float64) string {
	if v == 0 {
		return "0"
	}
	decimals := 0
	for s := step; s < 1 && decimals < 6; s *= 10 {
		decimals++
	}
	if step == 2.5*math.Pow(10, math.Floor(math.Log10(step))) && step < 10 {
		decimals++
	}
	return fmt.Sprintf("%.*f", decimals, v)
}
