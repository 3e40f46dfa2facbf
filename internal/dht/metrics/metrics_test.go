package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetrics_NilSafe 测试 nil 接收者不会 panic
func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageSent("ping", 10)
		m.MessageRetried()
		m.ReplicaDelivered(true)
		m.QuorumChecked("read", false)
		m.CorruptionDetected(2)
		assert.Nil(t, m.Traffic())
		assert.NoError(t, m.RegisterGauge("x", "y", "z", func() float64 { return 1 }))
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := New("test")

	m.MessageSent("store", 100)
	m.MessageSent("store", 50)
	m.ReplicaDelivered(true)
	m.ReplicaDelivered(false)
	m.ReplicaDelivered(false)
	m.QuorumChecked("write", true)
	m.RepairCompleted(3, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesSent.WithLabelValues("store")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.replicaDeliveries.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quorumChecks.WithLabelValues("write", ResultMet)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.repairKeys.WithLabelValues(ResultSuccess)))
	assert.Equal(t, int64(150), m.Traffic().ForKind("store").TotalOut)
}

func TestMetrics_GaugeAndHandler(t *testing.T) {
	m := New("test")
	require.NoError(t, m.RegisterGauge("nodes", "total", "Known nodes.", func() float64 { return 7 }))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "test_nodes_total 7"), body)
}

// TestRateMeter_Window 测试滑动窗口速率
func TestRateMeter_Window(t *testing.T) {
	clk := clock.NewMock()
	r := NewRateMeter(clk)

	r.Add(600)
	assert.InDelta(t, 10.0, r.Rate(), 1e-9)

	clk.Add(30 * time.Second)
	r.Add(600)
	assert.InDelta(t, 20.0, r.Rate(), 1e-9)

	clk.Add(45 * time.Second)
	assert.InDelta(t, 10.0, r.Rate(), 1e-9, "第一个桶已滑出窗口")

	clk.Add(2 * time.Minute)
	assert.Zero(t, r.Rate())
}

func TestTraffic_Totals(t *testing.T) {
	tr := NewTraffic(clock.NewMock())
	tr.LogSent("ping", 10)
	tr.LogRecv("pong", 12)
	tr.LogRecv("pong", 8)

	totals := tr.Totals()
	assert.Equal(t, int64(10), totals.TotalOut)
	assert.Equal(t, int64(20), totals.TotalIn)
	assert.Equal(t, int64(20), tr.ForKind("pong").TotalIn)
	assert.Zero(t, tr.ForKind("store").TotalIn)
}
