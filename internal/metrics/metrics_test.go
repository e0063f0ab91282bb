package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	rec := New(prometheus.NewRegistry())

	rec.RecordAcquire("binance", "high", 0.2)
	rec.RecordAcquire("binance", "high", 0)
	rec.RecordCache("redis", "hit")
	rec.RecordPipeline("ok")
	rec.RecordUpstream("coingecko", "429")

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.acquireTotal.WithLabelValues("binance", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.cacheRequests.WithLabelValues("redis", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.pipelineRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.upstreamRequests.WithLabelValues("coingecko", "429")))
}

func TestRecorderHandlerServesSeries(t *testing.T) {
	rec := New(nil)
	rec.RecordPipeline("error")

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `pipeline_runs_total{result="error"} 1`))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	rec.RecordAcquire("x", "low", 1)
	rec.RecordCache("memory", "miss")
	rec.RecordPipeline("ok")
	rec.RecordUpstream("x", "200")
	assert.NotNil(t, rec.Handler())
}
