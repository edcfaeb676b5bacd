package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/agent"
	"github.com/vadiminshakov/orbit/internal/chat"
	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/internal/events"
)

type fakeChat struct {
	got string
}

func (f *fakeChat) Handle(_ context.Context, text string) (chat.Reply, error) {
	f.got = text
	if text == "" {
		return chat.Reply{}, errors.New("empty message")
	}
	return chat.Reply{Intent: chat.IntentPrice, Text: "ETH is trading at $2150.45"}, nil
}

type fakeRunner struct {
	report agent.CycleReport
}

func (f fakeRunner) RunCycle(_ context.Context, trigger domain.CycleTrigger) agent.CycleReport {
	r := f.report
	r.Trigger = trigger
	return r
}

type fakeCycles struct {
	records []domain.CycleEventRecord
}

func (f fakeCycles) EventsAfter(index uint64) ([]domain.CycleEventRecord, error) {
	var out []domain.CycleEventRecord
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeExposures struct{}

func (fakeExposures) SnapshotsAfter(uint64) ([]domain.ExposureRecordEntry, error) {
	return []domain.ExposureRecordEntry{{Index: 1, Record: domain.ExposureRecord{
		Pair: "ETH_USDC", Exposure: map[string]string{"TOKEN0": "50.0"}, TotalValue: "100",
	}}}, nil
}

func newTestServer(deps Dependencies) *Server {
	return NewServer(zap.NewNop(), ":0", time.Minute, deps)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(Dependencies{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndex(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(Dependencies{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Orbit treasury agent")
}

func TestChat(t *testing.T) {
	fc := &fakeChat{}
	srv := newTestServer(Dependencies{Chat: fc})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"eth price"}`))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var reply chat.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, chat.IntentPrice, reply.Intent)
	assert.Equal(t, "eth price", fc.got)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_Unavailable(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(Dependencies{}).Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunCycle(t *testing.T) {
	partial := domain.ExecutionResult{Success: false, OracleUpdateTxID: "0xoracle", Error: domain.ErrorKindSwapFailed}
	srv := newTestServer(Dependencies{Runner: fakeRunner{report: agent.CycleReport{ID: "c1", Result: partial}}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cycles/run", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "c1", body["id"])
	assert.Equal(t, "api", body["trigger"])
	assert.Equal(t, true, body["partial"])
	assert.Equal(t, "SWAP_FAILED", body["result"].(map[string]any)["error"])
}

func TestRunCycle_StatusCodes(t *testing.T) {
	tests := []struct {
		kind   domain.ErrorKind
		status int
	}{
		{domain.ErrorKindCycleInProgress, http.StatusConflict},
		{domain.ErrorKindUpstreamDataUnavailable, http.StatusBadGateway},
		{domain.ErrorKindOracleUpdateFailed, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			result := domain.FailedResult(domain.HoldDecision(), tt.kind, nil)
			srv := newTestServer(Dependencies{Runner: fakeRunner{report: agent.CycleReport{Result: result}}})

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cycles/run", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

// ctxRecorder records the state of the context a cycle was started with.
type ctxRecorder struct {
	err         error
	hasDeadline bool
}

func (c *ctxRecorder) RunCycle(ctx context.Context, trigger domain.CycleTrigger) agent.CycleReport {
	c.err = ctx.Err()
	_, c.hasDeadline = ctx.Deadline()
	return agent.CycleReport{Trigger: trigger, Result: domain.NoopResult(domain.HoldDecision())}
}

func (c *ctxRecorder) Handle(ctx context.Context, _ string) (chat.Reply, error) {
	c.err = ctx.Err()
	_, c.hasDeadline = ctx.Deadline()
	return chat.Reply{Intent: chat.IntentRebalance}, nil
}

func TestCycleSurvivesClientDisconnect(t *testing.T) {
	disconnected, cancel := context.WithCancel(context.Background())
	cancel()

	t.Run("run cycle", func(t *testing.T) {
		rec := &ctxRecorder{}
		srv := newTestServer(Dependencies{Runner: rec})

		req := httptest.NewRequest(http.MethodPost, "/cycles/run", nil).WithContext(disconnected)
		srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

		assert.NoError(t, rec.err)
		assert.True(t, rec.hasDeadline)
	})

	t.Run("chat", func(t *testing.T) {
		rec := &ctxRecorder{}
		srv := newTestServer(Dependencies{Chat: rec})

		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"rebalance"}`)).WithContext(disconnected)
		srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

		assert.NoError(t, rec.err)
		assert.True(t, rec.hasDeadline)
	})
}

func TestStartWithAutoTLS_RequiresDomains(t *testing.T) {
	err := newTestServer(Dependencies{}).StartWithAutoTLS(context.Background(), nil, t.TempDir())
	assert.ErrorContains(t, err, "no domains")
}

func readEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}

func openStream(t *testing.T, srv *httptest.Server, path string) (*bufio.Reader, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return bufio.NewReader(resp.Body), func() {
		cancel()
		resp.Body.Close()
	}
}

func TestCycleStream_ReplaysWAL(t *testing.T) {
	cycles := fakeCycles{records: []domain.CycleEventRecord{
		{Index: 1, Event: domain.CycleEvent{ID: "c1", Action: "HOLD", Success: true}},
		{Index: 2, Event: domain.CycleEvent{ID: "c2", Action: "BUY_BASE", Success: true, SwapTxID: "0xswap"}},
	}}
	srv := httptest.NewServer(newTestServer(Dependencies{Cycles: cycles}).Handler())
	defer srv.Close()

	reader, closeStream := openStream(t, srv, "/cycles/stream")
	defer closeStream()

	event, data := readEvent(t, reader)
	assert.Equal(t, "cycle", event)
	assert.Contains(t, data, `"id":"c1"`)

	_, data = readEvent(t, reader)
	assert.Contains(t, data, `"swap_tx_id":"0xswap"`)
}

func TestExposureStream(t *testing.T) {
	srv := httptest.NewServer(newTestServer(Dependencies{Exposures: fakeExposures{}}).Handler())
	defer srv.Close()

	reader, closeStream := openStream(t, srv, "/exposure/stream")
	defer closeStream()

	event, data := readEvent(t, reader)
	assert.Equal(t, "exposure", event)
	assert.Contains(t, data, `"TOKEN0":"50.0"`)
}

func TestProgressStream(t *testing.T) {
	progress := events.NewBroadcaster(8)
	srv := httptest.NewServer(newTestServer(Dependencies{Progress: progress}).Handler())
	defer srv.Close()

	reader, closeStream := openStream(t, srv, "/progress/stream")
	defer closeStream()

	require.Eventually(t, func() bool { return progress.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	progress.Publish(events.ProgressEvent{CycleID: "c1", Stage: events.StageDecided, Message: "hold"})

	event, data := readEvent(t, reader)
	assert.Equal(t, "progress", event)
	assert.Contains(t, data, `"stage":"decided"`)
}

func TestStreams_Unavailable(t *testing.T) {
	srv := newTestServer(Dependencies{})
	for _, path := range []string{"/cycles/stream", "/exposure/stream", "/progress/stream"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}
