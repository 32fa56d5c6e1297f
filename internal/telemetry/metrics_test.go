package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveOperation("search_papers", time.Now(), nil)
	m.ObserveOperation("search_papers", time.Now(), errors.New("down"))
	m.ObserveCapability("paper_search", "catalog", nil)
	m.PaperUpserted(true)
	m.PaperUpserted(false)
	m.PaperUpserted(false)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("search_papers", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CapabilityCalls.WithLabelValues("paper_search", "catalog", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PapersIngested.WithLabelValues("merged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("chat", time.Now(), nil)
		m.ObserveCapability("text_analyzer", "offline", nil)
		m.ObserveHTTP("/api/chat", "POST", "200", time.Now())
		m.PaperUpserted(true)
		m.SessionOpened()
		m.SessionClosed()
	})
}
