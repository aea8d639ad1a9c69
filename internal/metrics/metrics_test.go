package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// value returns the current value of the first sample of family name whose labels include want.
func value(t *testing.T, m *Metrics, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	sample:
		for _, metric := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue sample
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, want)
	return 0
}

func TestMetrics(t *testing.T) {
	t.Run("ObserveIngest", func(t *testing.T) {
		m := New()
		m.ObserveIngest("completed", 1024, 2*time.Second)
		m.ObserveIngest("completed", 1024, time.Second)
		m.ObserveIngest("failed", 0, time.Second)

		if got := value(t, m, "jukebox_ingest_jobs_total", map[string]string{"outcome": "completed"}); got != 2 {
			t.Errorf("completed = %v, want 2", got)
		}
		if got := value(t, m, "jukebox_ingest_bytes_total", nil); got != 2048 {
			t.Errorf("bytes = %v, want 2048", got)
		}
		if got := value(t, m, "jukebox_ingest_duration_seconds", nil); got != 3 {
			t.Errorf("duration samples = %v, want 3", got)
		}
	})

	t.Run("ObserveStream", func(t *testing.T) {
		m := New()
		m.ObserveStream(http.StatusPartialContent, 100)
		m.ObserveStream(http.StatusRequestedRangeNotSatisfiable, 0)

		if got := value(t, m, "jukebox_stream_responses_total", map[string]string{"status": "206"}); got != 1 {
			t.Errorf("206 responses = %v", got)
		}
		if got := value(t, m, "jukebox_stream_bytes_total", nil); got != 100 {
			t.Errorf("stream bytes = %v", got)
		}
	})

	t.Run("ObserveRequest", func(t *testing.T) {
		m := New()
		m.ObserveRequest(http.MethodGet, "/api/songs", http.StatusOK, 10*time.Millisecond)

		labels := map[string]string{"method": "GET", "route": "/api/songs", "status": "200"}
		if got := value(t, m, "jukebox_http_requests_total", labels); got != 1 {
			t.Errorf("requests = %v", got)
		}
	})

	t.Run("Handler", func(t *testing.T) {
		m := New()
		m.ObserveIngest("shared", 10, time.Second)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		body, _ := io.ReadAll(rec.Body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		for _, want := range []string{`jukebox_ingest_jobs_total{outcome="shared"} 1`, "go_goroutines"} {
			if !strings.Contains(string(body), want) {
				t.Errorf("exposition missing %q", want)
			}
		}
	})

	t.Run("independent registries", func(t *testing.T) {
		a, b := New(), New()
		a.ObserveIngest("completed", 1, time.Second)

		families, err := b.Registry().Gather()
		if err != nil {
			t.Fatal(err)
		}
		for _, mf := range families {
			if mf.GetName() == "jukebox_ingest_jobs_total" {
				t.Error("observations leaked across registries")
			}
		}
	})
}
