package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(fn http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		fn     CheckFunc
		runs   int
		status int
		body   string
	}{
		{"passing", pass, 1, http.StatusOK, `{"status":"ok"}`},
		{"below threshold", fail("temporary"), 2, http.StatusOK, `{"status":"ok"}`},
		{"at threshold", fail("connection refused"), 3, http.StatusServiceUnavailable,
			`{"status":"unhealthy","checks":{"db":"connection refused"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("db", time.Second, tt.fn)
			runN(h.checks[Liveness][0], tt.runs)

			w := serve(h.LiveEndpoint)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestCheck_Recovers(t *testing.T) {
	var broken atomic.Bool
	broken.Store(true)
	fn := func(context.Context) error {
		if broken.Load() {
			return errors.New("down")
		}
		return nil
	}

	h := New()
	h.AddReadinessCheck("redis", time.Second, fn, WithThresholds(1, 2))
	h.SetReady(true)
	c := h.checks[Readiness][0]

	runN(c, 1)
	assert.False(t, h.IsReady())

	broken.Store(false)
	runN(c, 1)
	assert.False(t, h.IsReady(), "one success is below the threshold")
	runN(c, 1)
	assert.True(t, h.IsReady())
}

func TestReadyEndpoint_Gate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, pass)

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.ReadyEndpoint).Code)
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.AddReadinessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithThresholds(1, 1))
	h.SetReady(true)

	runN(h.checks[Readiness][0], 1)
	assert.False(t, h.IsReady())
}

func TestStart(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, fail("refused"), WithThresholds(1, 1))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	h.Stop()
	h.Stop()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	assert.NoError(t, PingCheck(pinger{})(context.Background()))
	assert.Error(t, PingCheck(pinger{err: errors.New("x")})(context.Background()))

	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
