package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStage(t *testing.T) {
	m := New()

	m.ObserveStage("resolve_people", 10*time.Millisecond, false)
	m.ObserveStage("resolve_people", 20*time.Millisecond, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageErrors.WithLabelValues("resolve_people")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.stageErrors.WithLabelValues("resolve_scene")))
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveRequest(true)
	m.ObserveRequest(false)
	m.ObserveRequest(false)
	m.ObserveAlbumBuild(true)
	m.AddSkippedEmbeddings(3)
	m.AddSkippedEmbeddings(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.albumBuilds.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.skippedEmbeddings))
}

func TestNilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("x", time.Second, true)
		m.ObserveRequest(true)
		m.ObserveAlbumBuild(false)
		m.AddSkippedEmbeddings(1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "photo_curator_pipeline_requests_total"))
	assert.True(t, strings.Contains(body, `service="photo-curator"`))
}
