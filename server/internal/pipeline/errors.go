package pipeline

import (
	"errors"
	"net/http"

	"github.com/festtally/festtally/server/internal/chart"
	"github.com/festtally/festtally/server/internal/feed"
	"github.com/festtally/festtally/server/internal/metrics"
)

// Error kinds reported in Status and the health API.
const (
	KindNetwork = "network"
	KindParse   = "parse"
	KindRender  = "render"
	KindUnknown = "unknown"
)

// ErrorKind classifies err by the pipeline's error taxonomy.
func ErrorKind(err error) string {
	var (
		ne *feed.NetworkError
		pe *feed.ParseError
		re *chart.RenderError
	)
	switch {
	case errors.As(err, &ne):
		return KindNetwork
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &re):
		return KindRender
	default:
		return KindUnknown
	}
}

func outcomeFor(kind string) string {
	switch kind {
	case KindNetwork:
		return metrics.OutcomeNetworkError
	case KindParse:
		return metrics.OutcomeParseError
	case KindRender:
		return metrics.OutcomeRenderError
	default:
		return "error"
	}
}

// HTTPStatus maps a run error to the status served to clients: 502 when the
// feed failed, 500 when the chart could not be built.
func HTTPStatus(err error) int {
	if ErrorKind(err) == KindRender {
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}
