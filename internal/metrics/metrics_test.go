package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CacheHit("s")
	m.CacheMiss("s")
	m.CacheEvicted("s", 3)
	m.Operation("op", time.Now(), nil)
	m.Cleaned(1, 2, 3)
	m.EventPublished("x")
	m.EventDropped("x")
	m.HandlerFailed("x")
	m.MetadataFetch("ok")
}

func TestCounters(t *testing.T) {
	m := New()
	m.CacheHit("tags")
	m.CacheHit("tags")
	m.CacheMiss("tags")
	m.Operation("remove_tags", time.Now(), errors.New("x"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("tags", "hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("tags", "miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("remove_tags", "error")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.EventDropped("TagsAdded")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `vidtags_events_dropped_total{type="TagsAdded"} 1`))
}
