package page

import (
	"html/template"
	"io"
	"time"

	"github.com/festtally/festtally/server/internal/chart"
	"github.com/festtally/festtally/server/internal/config"
	"github.com/festtally/festtally/server/internal/pipeline"
)

// TimestampLayout formats the "last updated" line, e.g.
// "March 14, 2026 | 6:45 PM".
const TimestampLayout = "January 2, 2006 | 3:04 PM"

// Options controls page presentation.
type Options struct {
	Title         string
	LogoURL       string
	BackgroundURL string

	// Location is the fixed zone for all displayed times.
	Location *time.Location

	// Stale marks the page as showing a stored earlier load. DataAsOf is when
	// that load happened and StaleReason the failure that caused fallback.
	Stale       bool
	DataAsOf    time.Time
	StaleReason string

	// LiveRefresh enables the websocket client script.
	LiveRefresh bool

	// Size is the chart's drawing size.
	Size chart.Size
}

// OptionsFrom builds presentation options from page configuration.
func OptionsFrom(cfg *config.Config) (Options, error) {
	loc, err := cfg.Page.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Title:         cfg.Page.Title,
		LogoURL:       cfg.Page.LogoURL,
		BackgroundURL: cfg.Page.BackgroundURL,
		Location:      loc,
		LiveRefresh:   cfg.Server.RefreshInterval > 0,
		Size:          chart.Size{Width: cfg.Chart.Width, Height: cfg.Chart.Height},
	}, nil
}

// ForResult returns o marked stale when res is a stored earlier load.
func (o Options) ForResult(res *pipeline.Result) Options {
	o.Stale = res.Stale
	if res.Stale {
		o.DataAsOf = res.FetchedAt
		o.StaleReason = pipeline.ErrorKind(res.StaleErr) + " error"
	}
	return o
}

// LastUpdated formats t in loc with TimestampLayout.
func LastUpdated(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}

// Presenter renders dashboard pages.
type Presenter struct {
	now func() time.Time // injectable for deterministic tests
}

// NewPresenter returns a Presenter using the wall clock.
func NewPresenter() *Presenter {
	return &Presenter{now: time.Now}
}

type pageData struct {
	Options
	Chart       template.HTML
	LastUpdated string
	DataAsOf    string
}

// Render writes the full dashboard page for spec. The timestamp is taken at
// render time.
func (p *Presenter) Render(w io.Writer, spec *chart.Spec, opts Options) error {
	svg, err := ChartSVG(spec, opts.Size)
	if err != nil {
		return err
	}
	d := pageData{
		Options:     opts,
		Chart:       svg,
		LastUpdated: LastUpdated(p.now(), opts.Location),
	}
	if opts.Stale {
		d.DataAsOf = LastUpdated(opts.DataAsOf, opts.Location)
	}
	if err := pageTmpl.Execute(w, d); err != nil {
		return &chart.RenderError{Op: "page", Err: err}
	}
	return nil
}

// Fragment is the live-refreshable part of the page. DataAsOf and
// StaleReason are set only when Stale is.
type Fragment struct {
	ChartSVG    template.HTML `json:"chart_svg"`
	LastUpdated string        `json:"last_updated"`
	Stale       bool          `json:"stale"`
	DataAsOf    string        `json:"data_as_of,omitempty"`
	StaleReason string        `json:"stale_reason,omitempty"`
}

// Fragment renders only the chart and timestamp, for pushing to open pages.
func (p *Presenter) Fragment(spec *chart.Spec, opts Options) (Fragment, error) {
	svg, err := ChartSVG(spec, opts.Size)
	if err != nil {
		return Fragment{}, err
	}
	f := Fragment{
		ChartSVG:    svg,
		LastUpdated: LastUpdated(p.now(), opts.Location),
		Stale:       opts.Stale,
	}
	if opts.Stale {
		f.DataAsOf = LastUpdated(opts.DataAsOf, opts.Location)
		f.StaleReason = opts.StaleReason
	}
	return f, nil
}

type errorData struct {
	Title   string
	Status  int
	Heading string
	Message string
	RunID   string
}

// RenderError writes the error page shown when a load fails.
func (p *Presenter) RenderError(w io.Writer, title string, status int, heading, msg, runID string) error {
	return errorTmpl.Execute(w, errorData{
		Title:   title,
		Status:  status,
		Heading: heading,
		Message: msg,
		RunID:   runID,
	})
}

const pageStyle = `
      :root { --text: #0b1a2e; --muted: #5b6b82; --panel: rgba(255,255,255,0.92); --warn: #b45309; }
      * { box-sizing: border-box; }
      body {
        margin: 0;
        font-family: ui-sans-serif, system-ui, -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
        color: var(--text);
        background: #eef3f9 center / cover no-repeat fixed;
      }
      main { max-width: 1040px; margin: 32px auto; padding: 24px; background: var(--panel); border-radius: 12px; }
      header { display: flex; align-items: center; gap: 16px; }
      header img { height: 56px; }
      h1 { margin: 0; font-size: 28px; }
      .updated { color: var(--muted); margin: 8px 0 16px; }
      .stale { border-left: 4px solid var(--warn); padding: 8px 12px; background: #fff7ed; color: var(--warn); margin-bottom: 16px; }
      svg.chart { width: 100%; height: auto; }
      svg .grid { stroke: #d7dee8; }
      svg .baseline { stroke: #5b6b82; }
      svg .tick, svg .axis-title, svg .empty { fill: var(--muted); font-size: 12px; }
      svg .value { fill: var(--text); font-size: 14px; }
      svg .label { fill: #ffffff; font-size: 12px; paint-order: stroke; stroke: rgba(0,0,0,0.45); stroke-width: 2px; }
`

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>{{.Title}}</title>
    <style>` + pageStyle + `</style>
  </head>
  <body{{if .BackgroundURL}} style="background-image: url('{{.BackgroundURL}}')"{{end}}>
    <main>
      <header>
        {{- if .LogoURL}}
        <img class="logo" src="{{.LogoURL}}" alt="" />
        {{- end}}
        <h1>{{.Title}}</h1>
      </header>
      <p class="updated">Last updated: <span id="last-updated">{{.LastUpdated}}</span></p>
      {{- if .Stale}}
      <p class="stale" id="stale-banner">Showing data from {{.DataAsOf}}. The latest load failed: {{.StaleReason}}</p>
      {{- end}}
      {{- if .LiveRefresh}}
      <p class="stale" id="live-error" hidden></p>
      {{- end}}
      <div id="chart">{{.Chart}}</div>
    </main>
    {{- if .LiveRefresh}}
    <script>
      (function () {
        var proto = location.protocol === "https:" ? "wss://" : "ws://";
        var main = document.querySelector("main");
        var chart = document.getElementById("chart");
        var liveError = document.getElementById("live-error");

        function setStale(data) {
          var banner = document.getElementById("stale-banner");
          if (!data.stale) {
            if (banner) { banner.remove(); }
            return;
          }
          if (!banner) {
            banner = document.createElement("p");
            banner.className = "stale";
            banner.id = "stale-banner";
            main.insertBefore(banner, liveError);
          }
          banner.textContent = "Showing data from " + data.data_as_of +
            ". The latest load failed: " + data.stale_reason;
        }

        function onRefresh(data) {
          liveError.hidden = true;
          liveError.textContent = "";
          chart.hidden = false;
          chart.innerHTML = data.chart_svg;
          document.getElementById("last-updated").textContent = data.last_updated;
          setStale(data);
        }

        function onError(data) {
          var banner = document.getElementById("stale-banner");
          if (banner) { banner.remove(); }
          chart.hidden = true;
          chart.innerHTML = "";
          liveError.textContent = "Could not load the scoreboard (" + data.kind + " error). Retrying.";
          liveError.hidden = false;
        }

        function connect() {
          var ws = new WebSocket(proto + location.host + "/ws/stream");
          ws.onmessage = function (ev) {
            var msg = JSON.parse(ev.data);
            if (msg.event === "refresh") {
              onRefresh(msg.data);
            } else if (msg.event === "error") {
              onError(msg.data);
            }
          };
          ws.onclose = function () { setTimeout(connect, 5000); };
        }
        connect();
      })();
    </script>
    {{- end}}
  </body>
</html>
`))

var errorTmpl = template.Must(template.New("error").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>{{.Title}}</title>
    <style>` + pageStyle + `</style>
  </head>
  <body>
    <main>
      <h1>{{.Heading}}</h1>
      <p class="error" id="error-message">{{.Message}}</p>
      <p class="updated">Status {{.Status}}{{if .RunID}} &middot; request {{.RunID}}{{end}}</p>
    </main>
  </body>
</html>
`))
