package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Official-Krish/ai-trading-zerodha/internal/store"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// countingLedger serves canned views and counts read calls.
type countingLedger struct {
	mu              sync.Mutex
	invocations     []types.InvocationView
	series          []types.SnapshotView
	invCalls        atomic.Int64
	seriesCalls     atomic.Int64
	invBlock        chan struct{}
	seriesErr       error
	lastInvLimit    int
	lastInvLimitSet bool
}

func (l *countingLedger) IncrementInvocationCount(ctx context.Context, modelName string) (types.ModelRow, error) {
	return types.ModelRow{}, nil
}
func (l *countingLedger) CreateInvocation(ctx context.Context, modelID int64) (int64, error) {
	return 0, nil
}
func (l *countingLedger) UpdateInvocationResponse(ctx context.Context, invocationID int64, text string) error {
	return nil
}
func (l *countingLedger) CreateToolCall(ctx context.Context, rec types.ToolCallRecord) error {
	return nil
}
func (l *countingLedger) CreatePortfolioSnapshot(ctx context.Context, modelName string, netValue float64) error {
	return nil
}

func (l *countingLedger) RecentInvocations(ctx context.Context, limit int) ([]types.InvocationView, error) {
	l.invCalls.Add(1)
	if l.invBlock != nil {
		<-l.invBlock
	}
	l.mu.Lock()
	l.lastInvLimit = limit
	l.lastInvLimitSet = true
	views := l.invocations
	l.mu.Unlock()
	return views, nil
}

func (l *countingLedger) PortfolioSeries(ctx context.Context) ([]types.SnapshotView, error) {
	l.seriesCalls.Add(1)
	if l.seriesErr != nil {
		return nil, l.seriesErr
	}
	return l.series, nil
}

func (l *countingLedger) Close() error { return nil }

func testServer(ledger *countingLedger) *Server {
	cfg := &store.Config{}
	cfg.Server.Addr = ":0"
	return New(cfg, ledger)
}

func makeInvocations(n int) []types.InvocationView {
	out := make([]types.InvocationView, n)
	for i := range out {
		out[i] = types.InvocationView{
			ID:        int64(n - i),
			ModelName: "gemini-2.5-pro",
			Response:  fmt.Sprintf("cycle %d", n-i),
			CreatedAt: time.Now(),
			ToolCalls: []types.ToolCallView{{ToolCallType: "HOLD_STOCK"}},
		}
	}
	return out
}

func TestPerformance_CachedWithinTTL(t *testing.T) {
	ledger := &countingLedger{series: []types.SnapshotView{{ModelName: "gemini-2.5-pro", NetValue: 500}}}
	s := testServer(ledger)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/performance", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	assert.EqualValues(t, 1, ledger.seriesCalls.Load(), "TTL window must serve from cache")

	var resp performanceResponse
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/performance", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Snapshots, 1)
	assert.Equal(t, 500.0, resp.Snapshots[0].NetValue)
}

func TestPerformance_RefreshesAfterTTL(t *testing.T) {
	ledger := &countingLedger{series: []types.SnapshotView{{NetValue: 500}}}
	s := testServer(ledger)

	now := time.Now()
	s.perf.now = func() time.Time { return now }

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/performance", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	now = now.Add(performanceTTL + time.Second)
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/performance", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	assert.EqualValues(t, 2, ledger.seriesCalls.Load())
}

func TestPerformance_ServesStaleOnRefreshFailure(t *testing.T) {
	ledger := &countingLedger{series: []types.SnapshotView{{NetValue: 500}}}
	s := testServer(ledger)

	now := time.Now()
	s.perf.now = func() time.Time { return now }

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/performance", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	ledger.seriesErr = fmt.Errorf("database is locked")
	now = now.Add(performanceTTL + time.Second)

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/performance", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp performanceResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Snapshots, 1, "stale series beats an error for a dashboard poll")
}

func TestInvocations_DefaultAndClampedLimit(t *testing.T) {
	ledger := &countingLedger{invocations: makeInvocations(50)}
	s := testServer(ledger)

	var resp invocationsResponse
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/invocations", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Invocations, 30, "default limit")
	assert.False(t, resp.Stale)

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/invocations?limit=5", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Invocations, 5)

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/invocations?limit=0", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Invocations, 1, "limit floors at 1")

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/invocations?limit=999", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/invocations?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// The refresh always pulls the full window regardless of request limit.
	ledger.mu.Lock()
	assert.Equal(t, invocationFetchLimit, ledger.lastInvLimit)
	ledger.mu.Unlock()
}

func TestInvocations_ColdStartFetchesOnce(t *testing.T) {
	ledger := &countingLedger{
		invocations: makeInvocations(3),
		invBlock:    make(chan struct{}),
	}
	s := testServer(ledger)

	// Hold the first ledger read open while more cold requests arrive.
	const concurrent = 5
	var wg sync.WaitGroup
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/invocations", nil))
			assert.Equal(t, http.StatusOK, rr.Code)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(ledger.invBlock)
	wg.Wait()

	assert.EqualValues(t, 1, ledger.invCalls.Load(), "cold start must hit the ledger once")
}

func TestInvocations_StaleFlagAndSingleFlightRefresh(t *testing.T) {
	ledger := &countingLedger{invocations: makeInvocations(3)}
	s := testServer(ledger)

	now := time.Now()
	s.inv.now = func() time.Time { return now }

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/invocations", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 1, ledger.invCalls.Load())

	// Push past the staleness window and hold the background refresh open
	// so concurrent stale reads would pile up if the guard were broken.
	now = now.Add(invocationStaleness + time.Second)
	ledger.invBlock = make(chan struct{})

	var resp invocationsResponse
	for i := 0; i < 5; i++ {
		rr = httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/invocations", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Stale, "read past the window is flagged stale")
		assert.Len(t, resp.Invocations, 3, "stale data still served without blocking")
	}

	close(ledger.invBlock)
	assert.Eventually(t, func() bool {
		return ledger.invCalls.Load() == 2
	}, time.Second, 10*time.Millisecond, "exactly one background refresh")
}
