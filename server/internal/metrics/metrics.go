package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeNetworkError = "network_error"
	OutcomeParseError   = "parse_error"
	OutcomeRenderError  = "render_error"
	OutcomeStale        = "stale"
)

const (
	runsName        = "festtally_pipeline_runs_total"
	runDurationName = "festtally_pipeline_run_duration_seconds"
	attemptsName    = "festtally_feed_fetch_attempts_total"
	standingsName   = "festtally_standings"
	lastSuccessName = "festtally_last_success_timestamp_seconds"
	wsClientsName   = "festtally_ws_clients"
)

// Metrics holds the collectors for one server.
type Metrics struct {
	reg *prometheus.Registry

	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	attempts    prometheus.Counter
	standings   prometheus.Gauge
	lastSuccess prometheus.Gauge
	wsClients   prometheus.Gauge
}

// New registers all collectors on a fresh registry, along with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: runsName,
			Help: "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    runDurationName,
			Help:    "Duration of pipeline runs in seconds, fetch included.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		attempts: f.NewCounter(prometheus.CounterOpts{
			Name: attemptsName,
			Help: "HTTP requests made to the feed, retries included.",
		}),
		standings: f.NewGauge(prometheus.GaugeOpts{
			Name: standingsName,
			Help: "Number of standings in the last successful load.",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: lastSuccessName,
			Help: "Unix time of the last successful load.",
		}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Name: wsClientsName,
			Help: "Connected live-refresh websocket clients.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveRun records one pipeline run.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// AddFetchAttempts counts feed requests.
func (m *Metrics) AddFetchAttempts(n int) {
	if n > 0 {
		m.attempts.Add(float64(n))
	}
}

// ObserveSuccess records the size and time of a successful load.
func (m *Metrics) ObserveSuccess(standings int, at time.Time) {
	m.standings.Set(float64(standings))
	m.lastSuccess.Set(float64(at.UnixNano()) / 1e9)
}

// SetWSClients records the number of connected websocket clients.
func (m *Metrics) SetWSClients(n int) {
	m.wsClients.Set(float64(n))
}

// Snapshot is a point-in-time summary of the collectors, for the health API.
type Snapshot struct {
	Runs          map[string]float64 `json:"runs"`
	FetchAttempts float64            `json:"fetch_attempts"`
	Standings     float64            `json:"standings"`
	LastSuccess   *time.Time         `json:"last_success,omitempty"`
	WSClients     float64            `json:"ws_clients"`
}

// Snapshot gathers the registry and summarises the dashboard's own families.
func (m *Metrics) Snapshot() (Snapshot, error) {
	mfs, err := m.reg.Gather()
	if err != nil {
		return Snapshot{}, err
	}
	byName := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}

	s := Snapshot{
		Runs:          byLabel(byName[runsName], "outcome"),
		FetchAttempts: sumFamily(byName[attemptsName]),
		Standings:     sumFamily(byName[standingsName]),
		WSClients:     sumFamily(byName[wsClientsName]),
	}
	if ts := sumFamily(byName[lastSuccessName]); ts > 0 {
		t := time.Unix(0, int64(ts*1e9)).UTC()
		s.LastSuccess = &t
	}
	return s, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (nothing recorded yet).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

// byLabel splits a counter family by the value of one label.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += m.GetCounter().GetValue()
			}
		}
	}
	return out
}
