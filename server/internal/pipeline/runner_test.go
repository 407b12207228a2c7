package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/festtally/festtally/server/internal/chart"
	"github.com/festtally/festtally/server/internal/config"
	"github.com/festtally/festtally/server/internal/feed"
	"github.com/festtally/festtally/server/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const scenarioCSV = "ORGANIZATION,POINTS\nOwls,50\nHawks,80\nWrens,80\n"

// fakeFeed serves whatever body/err is currently set.
type fakeFeed struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int
}

func (f *fakeFeed) Fetch(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

func (f *fakeFeed) set(body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.err = body, err
}

// clock is a settable test clock.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newRunner(t *testing.T, f *fakeFeed, mutate func(*config.Config), opts ...Option) (*Runner, *clock) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	clk := &clock{t: time.Date(2026, 3, 14, 18, 45, 0, 0, time.UTC)}
	opts = append([]Option{WithFetcher(f), WithClock(clk.now)}, opts...)
	return New(cfg, opts...), clk
}

func TestRun_Scenario(t *testing.T) {
	r, clk := newRunner(t, &fakeFeed{body: scenarioCSV}, nil)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	names := make([]string, len(res.Ranked))
	for i, s := range res.Ranked {
		names[i] = s.Organization
	}
	assert.Equal(t, []string{"Hawks", "Wrens", "Owls"}, names)
	assert.Equal(t, []string{"Hawks", "Wrens", "Owls"}, res.Spec.Categories())
	assert.Equal(t, "POINTS", res.Spec.ValueLabel)
	assert.Equal(t, "ORGANIZATION", res.Spec.CategoryLabel)
	assert.Equal(t, clk.now(), res.FetchedAt)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.Stale)
}

func TestRun_Idempotent(t *testing.T) {
	r, clk := newRunner(t, &fakeFeed{body: scenarioCSV}, nil)

	a, err := r.Run(context.Background())
	require.NoError(t, err)
	clk.advance(time.Minute)
	b, err := r.Run(context.Background())
	require.NoError(t, err)

	ignore := cmpopts.IgnoreFields(Result{}, "RunID", "FetchedAt")
	if diff := cmp.Diff(a, b, ignore); diff != "" {
		t.Errorf("runs on identical content differ (-first +second):\n%s", diff)
	}
}

func TestRun_HeaderOnly(t *testing.T) {
	r, _ := newRunner(t, &fakeFeed{body: "ORGANIZATION,SCORE\n"}, nil)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Ranked)
	assert.Empty(t, res.Spec.Bars)
	assert.Equal(t, 0, r.Status().Standings)
}

func TestRun_RunIDFromContext(t *testing.T) {
	r, _ := newRunner(t, &fakeFeed{body: scenarioCSV}, nil)

	res, err := r.Run(WithRunID(context.Background(), "req-123"))
	require.NoError(t, err)
	assert.Equal(t, "req-123", res.RunID)
}

func TestRun_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		kind string
	}{
		{"network", "", &feed.NetworkError{URL: "x", StatusCode: 503, Attempts: 3, Err: errors.New("unavailable")}, KindNetwork},
		{"parse", "ORGANIZATION\nOwls\n", nil, KindParse},
		{"non numeric", "ORGANIZATION,SCORE\nOwls,lots\n", nil, KindParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newRunner(t, &fakeFeed{body: tt.body, err: tt.err}, nil)

			res, err := r.Run(context.Background())
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, ErrorKind(err))

			st := r.Status()
			assert.Equal(t, StateFailing, st.State)
			assert.Equal(t, 1, st.ConsecutiveFailures)
			assert.Equal(t, tt.kind, st.LastErrorKind)
		})
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, KindRender, ErrorKind(fmt.Errorf("wrapped: %w", &chart.RenderError{Op: "svg", Err: errors.New("x")})))
	assert.Equal(t, KindUnknown, ErrorKind(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 502, HTTPStatus(&feed.NetworkError{}))
	assert.Equal(t, 502, HTTPStatus(&feed.ParseError{}))
	assert.Equal(t, 500, HTTPStatus(&chart.RenderError{Op: "build"}))
}

func TestRun_FallbackDisabledIsFatal(t *testing.T) {
	f := &fakeFeed{body: scenarioCSV}
	r, _ := newRunner(t, f, nil)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	f.set("", &feed.NetworkError{URL: "x", Err: errors.New("down")})
	res, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestRun_FallbackServesStale(t *testing.T) {
	f := &fakeFeed{body: scenarioCSV}
	r, clk := newRunner(t, f, func(c *config.Config) {
		c.Fallback.Enabled = true
		c.Fallback.MaxAge = 10 * time.Minute
	})

	good, err := r.Run(context.Background())
	require.NoError(t, err)

	f.set("", &feed.NetworkError{URL: "x", Err: errors.New("down")})
	clk.advance(5 * time.Minute)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, KindNetwork, ErrorKind(res.StaleErr))
	assert.Equal(t, good.Ranked, res.Ranked)
	assert.Equal(t, good.FetchedAt, res.FetchedAt)
	assert.NotEqual(t, good.RunID, res.RunID)
	assert.False(t, good.Stale, "stored result must not be modified")

	st := r.Status()
	assert.True(t, st.ServingStale)
	assert.Equal(t, 1, st.ConsecutiveFailures)
	assert.Equal(t, 5*time.Minute, st.StaleFor(clk.now()))

	// Past max_age the failure is fatal again.
	clk.advance(10 * time.Minute)
	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.False(t, r.Status().ServingStale)
	assert.Equal(t, 2, r.Status().ConsecutiveFailures)
}

func TestRun_RecoveryResetsFailures(t *testing.T) {
	f := &fakeFeed{err: &feed.NetworkError{URL: "x", Err: errors.New("down")}}
	r, _ := newRunner(t, f, nil)

	for i := 0; i < 3; i++ {
		_, _ = r.Run(context.Background())
	}
	assert.Equal(t, 3, r.Status().ConsecutiveFailures)

	f.set(scenarioCSV, nil)
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	st := r.Status()
	assert.Equal(t, StateOK, st.State)
	assert.Zero(t, st.ConsecutiveFailures)
	assert.Empty(t, st.LastError)
}

func TestRun_StatusShape(t *testing.T) {
	body := "ORGANIZATION,SCORE,NOTES\nOwls,1,a\nHawks,2,b\nOwls,3,c\n"
	r, _ := newRunner(t, &fakeFeed{body: body}, nil)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	st := r.Status()
	assert.Equal(t, "ORGANIZATION", st.IdentityColumn)
	assert.Equal(t, "SCORE", st.ScoreColumn)
	assert.Equal(t, []string{"NOTES"}, st.ExtraColumns)
	assert.Equal(t, []string{"Owls"}, st.Duplicates)
	assert.Equal(t, 3, st.Standings)
}

func TestRun_StatusHook(t *testing.T) {
	var got []Status
	r, _ := newRunner(t, &fakeFeed{body: scenarioCSV}, nil,
		WithStatusHook(func(s Status) { got = append(got, s) }))

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StateOK, got[0].State)
}

func TestRun_Metrics(t *testing.T) {
	m := metrics.New()
	f := &fakeFeed{body: scenarioCSV}
	r, _ := newRunner(t, f, nil, WithMetrics(m))

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	f.set("", &feed.NetworkError{URL: "x", Attempts: 3, Err: errors.New("down")})
	_, _ = r.Run(context.Background())

	s, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		metrics.OutcomeOK:           1,
		metrics.OutcomeNetworkError: 1,
	}, s.Runs)
	assert.Equal(t, 3.0, s.Standings)
	// A substituted fetcher makes no HTTP requests of its own.
	assert.Zero(t, s.FetchAttempts)
}

func TestRun_StaleFallbackRecordsOneOutcome(t *testing.T) {
	m := metrics.New()
	f := &fakeFeed{body: scenarioCSV}
	r, _ := newRunner(t, f, func(c *config.Config) {
		c.Fallback.Enabled = true
	}, WithMetrics(m))

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	f.set("", &feed.NetworkError{URL: "x", Err: errors.New("down")})
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Stale)

	s, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		metrics.OutcomeOK:    1,
		metrics.OutcomeStale: 1,
	}, s.Runs)
}

func TestRun_CountsFetchAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Every run sees one 503 before the body.
		if hits.Add(1)%2 == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(scenarioCSV))
	}))
	t.Cleanup(func() {
		srv.Close()
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	})

	cfg := config.Default()
	cfg.Feed.URL = srv.URL
	cfg.Feed.Retries = 1
	cfg.Feed.BackoffInitial = time.Millisecond
	cfg.Feed.BackoffMax = time.Millisecond
	m := metrics.New()
	r := New(cfg, WithMetrics(m))

	for i := 0; i < 3; i++ {
		_, err := r.Run(context.Background())
		require.NoError(t, err)
	}

	s, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 6.0, s.FetchAttempts)
	assert.Equal(t, 3.0, s.Runs[metrics.OutcomeOK])
}

func TestSetConfig_SwapsForNextRun(t *testing.T) {
	r, _ := newRunner(t, &fakeFeed{body: scenarioCSV}, nil)

	cfg := config.Default()
	cfg.Chart.RotateAfter = 2
	r.SetConfig(cfg)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Spec.RotateLabels)
	assert.Same(t, cfg, r.Config())
}

func TestSetConfig_NewFeedResetsStatus(t *testing.T) {
	f := &fakeFeed{err: &feed.NetworkError{URL: "x", Err: errors.New("down")}}
	r, _ := newRunner(t, f, nil)
	_, _ = r.Run(context.Background())
	require.Equal(t, 1, r.Status().ConsecutiveFailures)

	cfg := config.Default()
	cfg.Feed.URL = "https://example.test/other.csv"
	r.SetConfig(cfg)

	st := r.Status()
	assert.Equal(t, StateUnknown, st.State)
	assert.Zero(t, st.ConsecutiveFailures)
	assert.Equal(t, "https://example.test/other.csv", st.FeedURL)
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	r, _ := newRunner(t, &fakeFeed{body: scenarioCSV}, nil)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Run(context.Background())
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.NotNil(t, res, "run %d failed", i)
		assert.Equal(t, "Hawks", res.Ranked[0].Organization)
	}
	// Results do not share slices.
	results[0].Ranked[0].Organization = "changed"
	assert.Equal(t, "Hawks", results[1].Ranked[0].Organization)
}

func TestDuplicates(t *testing.T) {
	r, _ := newRunner(t, &fakeFeed{body: "A,B\nx,1\ny,1\nx,1\nx,1\ny,2\n"}, nil)
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	// Ranked order is y(2), x, y, x, x: y reaches two rows first.
	assert.Equal(t, []string{"y", "x"}, duplicates(res.Ranked))
}
