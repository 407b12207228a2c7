package chart

import "fmt"

// RenderError reports a failure to construct or draw a chart.
type RenderError struct {
	// Op names the step that failed: "build", "png", "svg".
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("chart: %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
