package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"market-metrics/src/logger"
	"market-metrics/src/models"
	"market-metrics/src/query"
	"market-metrics/src/storage"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *QueryServer {
	t.Helper()
	cfg := &models.MConfig{
		Host:     "127.0.0.1",
		Port:     8000,
		LogLevel: "ERROR",
		Storage:  models.MStorageConfig{DBType: "sqlite", DBPath: filepath.Join(t.TempDir(), "api.db")},
		Metrics:  models.MMetricsConfig{WindowSize: 20, Enabled: []string{"volatility", "drawdown"}},
		Pipeline: models.MPipelineConfig{RecentRuns: 3},
	}
	log := logger.NewLoggerWithWriter(io.Discard, "ERROR", "text", "server")

	db, err := storage.NewSQLiteDB(cfg, log)
	require.NoError(t, err)
	require.NoError(t, db.Initialize(context.Background()))
	t.Cleanup(func() { db.Close() })

	w := storage.NewBatchWriter(db, time.Second, log)
	_, err = w.WritePrices(context.Background(), []models.MPricePoint{
		{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Symbol: "TEST", Open: 1, High: 1, Low: 1, Close: 100, Volume: 5, Source: "file_import"},
		{Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Symbol: "TEST", Open: 1, High: 1, Low: 1, Close: 98, Volume: 5, Source: "file_import"},
	})
	require.NoError(t, err)
	_, err = w.WriteMetrics(context.Background(), []models.MMetricRecord{
		{Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Symbol: "TEST", MetricName: models.MetricDrawdown, MetricValue: -0.02, CalculationDate: time.Now()},
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter_total", Help: "test"}))

	s := NewQueryServer(cfg, query.NewService(db, time.Second, log), db, reg, log)
	t.Cleanup(func() { s.Stop() })
	return s
}

func get(t *testing.T, s *QueryServer, url string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestPricesEndpoint(t *testing.T) {
	s := newTestServer(t)

	code, body := get(t, s, "/api/prices?symbol=TEST&start_date=2024-01-01&end_date=2024-01-03")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["empty"])
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, 100.0, data[0].(map[string]any)["close"])

	code, body = get(t, s, "/api/prices?symbol=TEST&start_date=2025-01-01&end_date=2025-01-03")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["empty"])
	assert.Empty(t, body["data"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	code, body := get(t, s, "/api/metrics?symbol=TEST&metric_name=drawdown&start_date=2024-01-01&end_date=2024-01-31")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body["data"], 1)

	code, body = get(t, s, "/api/metrics?symbol=TEST&metric_name=beta&start_date=2024-01-01&end_date=2024-01-31")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "unknown metric")

	code, _ = get(t, s, "/api/metrics?symbol=TEST&start_date=2024-01-01&end_date=2024-01-31")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, s, "/api/prices?symbol=TEST&start_date=2024-13-01&end_date=2024-01-31")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSymbolsHealthAndConfig(t *testing.T) {
	s := newTestServer(t)

	code, body := get(t, s, "/api/symbols")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"TEST"}, body["symbols"])

	code, body = get(t, s, "/api/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = get(t, s, "/api/config")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 20.0, body["window_size"])
}

func TestHealthDegradedWhenStoreDown(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.DB.Close())

	code, body := get(t, s, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
}

func TestPrometheusEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_counter_total")
}

func TestRunsAreCappedAndFiltered(t *testing.T) {
	s := newTestServer(t)
	for i, sym := range []string{"A", "B", "A", "C"} {
		s.Broadcast(models.MRunReport{RunID: string(rune('1' + i)), Stage: models.StageIngest, Symbol: sym, FinishedAt: time.Now()})
	}

	require.Eventually(t, func() bool {
		runs := s.RecentRuns("", 10)
		return len(runs) > 0 && runs[0].Symbol == "C"
	}, 2*time.Second, 10*time.Millisecond)

	runs := s.RecentRuns("", 10)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{runs[0].Symbol, runs[1].Symbol, runs[2].Symbol})

	code, body := get(t, s, "/api/runs?symbol=A")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["count"])

	code, _ = get(t, s, "/api/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWebSocketPushesReports(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var msg models.MRunMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.MessageInitial, msg.Type)

	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Symbols: []string{"TEST"}}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.MessageInitial, msg.Type)

	s.Broadcast(models.MRunReport{Stage: models.StageMetrics, Symbol: "OTHER", FinishedAt: time.Now()})
	s.Broadcast(models.MRunReport{Stage: models.StageMetrics, Symbol: "TEST", RecordsWritten: 7, FinishedAt: time.Now()})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.MessageUpdate, msg.Type)
	require.Len(t, msg.Runs, 1)
	assert.Equal(t, "TEST", msg.Runs[0].Symbol)
	assert.Equal(t, 7, msg.Runs[0].RecordsWritten)
}
