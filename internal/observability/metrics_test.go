package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveAggregateOperation("op", "success", time.Millisecond)
	m.IncGraphRejection("cycle")
	m.AddSyncChanges(map[string]int{"created": 1})
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestHistogramVecWritesBuckets(t *testing.T) {
	h := NewHistogramVec("x_seconds", "help", []string{"op"}, []float64{0.1, 1})
	h.Observe(0.05, "sync")
	h.Observe(0.5, "sync")

	var buf bytes.Buffer
	if err := h.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`x_seconds_bucket{op="sync",le="0.1"} 1`,
		`x_seconds_bucket{op="sync",le="1"} 2`,
		`x_seconds_bucket{op="sync",le="+Inf"} 2`,
		`x_seconds_count{op="sync"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("histogram output missing %q:\n%s", want, out)
		}
	}
}

func TestLabelStringEscapes(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`q"x`})
	want := `{a="q\"x",b="unknown"}`
	if got != want {
		t.Fatalf("labelString: want=%s got=%s", want, got)
	}
}
