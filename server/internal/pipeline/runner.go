package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/festtally/festtally/pkg/types"
	"github.com/festtally/festtally/server/internal/chart"
	"github.com/festtally/festtally/server/internal/config"
	"github.com/festtally/festtally/server/internal/feed"
	"github.com/festtally/festtally/server/internal/metrics"
	"github.com/festtally/festtally/server/internal/rank"
	"github.com/festtally/festtally/server/internal/store"
)

// Result is the output of one pipeline run.
type Result struct {
	RunID     string           `json:"run_id"`
	Table     *feed.Table      `json:"-"`
	Ranked    []types.Standing `json:"standings"`
	Spec      *chart.Spec      `json:"chart"`
	FetchedAt time.Time        `json:"fetched_at"`

	// Stale is set when this result is a stored earlier load served because
	// the current load failed; StaleErr is that failure.
	Stale    bool  `json:"stale"`
	StaleErr error `json:"-"`
}

// Runner executes pipeline runs against the current configuration.
//
// Runner is safe for concurrent use. Concurrent Runs are independent.
type Runner struct {
	cfg     atomic.Pointer[config.Config]
	fetcher feed.Fetcher // overrides the configured URL when set
	last    *store.Store[*Result]
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.Mutex
	status Status
	hooks  []func(Status)
}

// Option configures a Runner.
type Option func(*Runner)

// WithFetcher makes every run read from f instead of the configured feed URL.
func WithFetcher(f feed.Fetcher) Option { return func(r *Runner) { r.fetcher = f } }

// WithStore sets the last-good result store used for stale fallback.
func WithStore(s *store.Store[*Result]) Option { return func(r *Runner) { r.last = s } }

// WithMetrics records run outcomes on m.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// WithStatusHook registers fn to be called with the feed status after every run.
func WithStatusHook(fn func(Status)) Option {
	return func(r *Runner) { r.hooks = append(r.hooks, fn) }
}

// New creates a Runner for cfg.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{now: time.Now}
	for _, o := range opts {
		o(r)
	}
	if r.last == nil {
		r.last = store.New[*Result](cfg.Fallback.MaxAge)
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	r.cfg.Store(cfg)
	r.status = Status{FeedURL: cfg.Feed.URL, State: StateUnknown}
	return r
}

// Config returns the configuration used by new runs.
func (r *Runner) Config() *config.Config { return r.cfg.Load() }

// SetConfig swaps the configuration for subsequent runs. Runs in flight keep
// the configuration they started with.
func (r *Runner) SetConfig(cfg *config.Config) {
	r.cfg.Store(cfg)
	r.last.SetTTL(cfg.Fallback.MaxAge)

	r.mu.Lock()
	if r.status.FeedURL != cfg.Feed.URL {
		r.status = Status{FeedURL: cfg.Feed.URL, State: StateUnknown}
	}
	r.mu.Unlock()
}

// Status returns a copy of the current feed status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.status
	s.ExtraColumns = append([]string(nil), s.ExtraColumns...)
	s.Duplicates = append([]string(nil), s.Duplicates...)
	return s
}

// Run performs one full load: fetch, parse, rank, build. On failure with
// fallback enabled, a stored result no older than fallback.max_age is returned
// marked Stale; otherwise the error is returned. Each run records exactly one
// outcome: ok, stale, or the error kind. Errors are *feed.NetworkError,
// *feed.ParseError or *chart.RenderError.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.cfg.Load()
	runID := RunIDFrom(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	log := slog.With("run_id", runID)
	start := r.now()

	res, err := r.run(ctx, cfg, runID)
	elapsed := r.now().Sub(start)

	if err == nil {
		r.last.Put(cfg.Feed.URL, res)
		r.metrics.ObserveRun(metrics.OutcomeOK, elapsed)
		r.metrics.ObserveSuccess(len(res.Ranked), res.FetchedAt)
		r.recordSuccess(cfg, res)
		log.Info("pipeline: run ok",
			"standings", len(res.Ranked),
			"score_column", res.Table.ScoreColumn,
			"duration", elapsed)
		return res, nil
	}

	kind := ErrorKind(err)

	if cfg.Fallback.Enabled {
		if e, ok := r.last.Get(cfg.Feed.URL); ok && r.fresh(e.Value, cfg.Fallback.MaxAge) {
			stale := *e.Value
			stale.RunID = runID
			stale.Stale = true
			stale.StaleErr = err
			r.metrics.ObserveRun(metrics.OutcomeStale, elapsed)
			r.recordFailure(cfg, err, kind, true)
			log.Warn("pipeline: run failed, serving last good result",
				"kind", kind,
				"age", r.now().Sub(e.Value.FetchedAt),
				"err", err)
			return &stale, nil
		}
	}

	r.metrics.ObserveRun(outcomeFor(kind), elapsed)
	r.recordFailure(cfg, err, kind, false)
	log.Error("pipeline: run failed", "kind", kind, "duration", elapsed, "err", err)
	return nil, err
}

func (r *Runner) run(ctx context.Context, cfg *config.Config, runID string) (*Result, error) {
	fetcher := r.fetcher
	if fetcher == nil {
		fetcher = feed.NewHTTPFetcher(cfg.Feed, feed.WithAttemptHook(r.metrics.AddFetchAttempts))
	}

	table, err := feed.NewLoader(fetcher).Load(ctx)
	if err != nil {
		return nil, err
	}
	fetchedAt := r.now()

	ranked := rank.Rank(table.Standings)

	builder, err := chart.NewBuilder(cfg.Chart)
	if err != nil {
		return nil, &chart.RenderError{Op: "build", Err: err}
	}
	spec, err := builder.Build(ranked, chart.Labels{
		Category: table.IdentityColumn,
		Value:    table.ScoreColumn,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:     runID,
		Table:     table,
		Ranked:    ranked,
		Spec:      spec,
		FetchedAt: fetchedAt,
	}, nil
}

// fresh reports whether res is young enough to serve. A maxAge of zero
// accepts any age.
func (r *Runner) fresh(res *Result, maxAge time.Duration) bool {
	return maxAge <= 0 || r.now().Sub(res.FetchedAt) <= maxAge
}

func (r *Runner) recordSuccess(cfg *config.Config, res *Result) {
	r.mu.Lock()
	r.status = Status{
		FeedURL:        cfg.Feed.URL,
		State:          StateOK,
		LastAttempt:    res.FetchedAt,
		LastSuccess:    res.FetchedAt,
		IdentityColumn: res.Table.IdentityColumn,
		ScoreColumn:    res.Table.ScoreColumn,
		ExtraColumns:   res.Table.ExtraColumns,
		Standings:      len(res.Ranked),
		Duplicates:     duplicates(res.Ranked),
	}
	st := r.status
	r.mu.Unlock()
	r.notify(st)
}

func (r *Runner) recordFailure(cfg *config.Config, err error, kind string, stale bool) {
	r.mu.Lock()
	if r.status.FeedURL != cfg.Feed.URL {
		r.status = Status{FeedURL: cfg.Feed.URL}
	}
	r.status.State = StateFailing
	r.status.ConsecutiveFailures++
	r.status.LastAttempt = r.now()
	r.status.LastError = err.Error()
	r.status.LastErrorKind = kind
	r.status.ServingStale = stale
	st := r.status
	r.mu.Unlock()
	r.notify(st)
}

func (r *Runner) notify(st Status) {
	for _, fn := range r.hooks {
		fn(st)
	}
}

// duplicates returns organization names that appear on more than one row, in
// first-seen order.
func duplicates(ss []types.Standing) []string {
	seen := make(map[string]int, len(ss))
	var out []string
	for _, s := range ss {
		seen[s.Organization]++
		if seen[s.Organization] == 2 {
			out = append(out, s.Organization)
		}
	}
	return out
}

type runIDKey struct{}

// WithRunID returns a context whose Run uses id as its run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run ID set by WithRunID, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
