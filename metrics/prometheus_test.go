package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicerelay/domain"
)

func TestMetrics_Sessions(t *testing.T) {
	m := NewMetrics()

	m.RecordSessionOpened()
	m.RecordSessionOpened()
	m.RecordSessionClosed("remote_closed", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsOpened))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsClosed.WithLabelValues("remote_closed")))
}

func TestMetrics_Relayed(t *testing.T) {
	m := NewMetrics()

	m.RecordRelayed("binary", 512, domain.Delivery{Recipients: 3, Failed: 1})
	m.RecordRelayed("text", 10, domain.Delivery{Recipients: 3})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesReceived.WithLabelValues("binary")))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.BytesReceived.WithLabelValues("binary")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.Deliveries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryFailures))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordSessionOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "voicerelay_active_sessions 1")
}
