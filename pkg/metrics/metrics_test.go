package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	reg := New()
	c := reg.Counter("requests_total", "Total requests.")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Fatalf("expected 3, got %d", c.Value())
	}
	// Same name returns the same counter.
	if reg.Counter("requests_total", "").Value() != 3 {
		t.Fatal("expected existing counter to be reused")
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("pipeline_stage_total", "stage", "search", "outcome", "ok")
	want := `pipeline_stage_total{stage="search",outcome="ok"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	// Odd label count falls back to the bare name.
	if WithLabels("x", "only") != "x" {
		t.Fatal("expected bare name for odd label count")
	}
}

func TestRender_Counters(t *testing.T) {
	reg := New()
	reg.Counter(WithLabels("stage_total", "stage", "insight"), "Stage runs.").Inc()
	reg.Counter(WithLabels("stage_total", "stage", "search"), "").Add(2)

	out := reg.Render()
	for _, want := range []string{
		"# HELP stage_total Stage runs.",
		"# TYPE stage_total counter",
		`stage_total{stage="insight"} 1`,
		`stage_total{stage="search"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q in:\n%s", want, out)
		}
	}
}

func TestRender_Histogram(t *testing.T) {
	reg := New()
	h := reg.Histogram("stage_seconds", "Stage latency.", []float64{0.1, 1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)

	out := reg.Render()
	for _, want := range []string{
		"# TYPE stage_seconds histogram",
		`stage_seconds_bucket{le="0.1"} 1`,
		`stage_seconds_bucket{le="1"} 2`,
		`stage_seconds_bucket{le="+Inf"} 3`,
		"stage_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q in:\n%s", want, out)
		}
	}
}

func TestHistogramSince(t *testing.T) {
	reg := New()
	h := reg.Histogram("latency_seconds", "", nil)
	h.Since(time.Now().Add(-10 * time.Millisecond))
	_, _, sum, count := h.snapshot()
	if count != 1 || sum <= 0 {
		t.Fatalf("expected one positive observation, got count=%d sum=%g", count, sum)
	}
}

func TestHandler(t *testing.T) {
	reg := New()
	reg.Counter("up", "").Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "up 1") {
		t.Fatalf("body missing metric: %s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type: %s", ct)
	}
}
