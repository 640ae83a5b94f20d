package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"seem/internal/scaling"
	"seem/pkg/taper"
)

func gatherValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]float64)
	for _, family := range families {
		for _, m := range family.GetMetric() {
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				v = float64(m.GetHistogram().GetSampleCount())
			}
			out[family.GetName()] += v
		}
	}
	return out
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("NewPrometheusMetricsRecorder: %v", err)
	}
	rec.Observe(context.Background(), "standing_volume", true, 3*time.Millisecond)
	rec.Observe(context.Background(), "standing_volume", false, time.Millisecond)

	values := gatherValues(t, reg)
	if values["seem_service_operations_total"] != 2 || values["seem_service_operation_duration_seconds"] != 2 {
		t.Fatalf("unexpected values: %v", values)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestTableStatsCollector(t *testing.T) {
	catalog, err := scaling.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	table, _, err := catalog.Table(taper.DouglasFir, scaling.ForwarderLogs)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	for range 2 {
		if _, err := table.Query(40, 30); err != nil {
			t.Fatalf("Query: %v", err)
		}
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewTableStatsCollector(catalog))

	values := gatherValues(t, reg)
	if values["seem_volume_table_computed_cells"] != 1 ||
		values["seem_volume_table_hits_total"] != 1 ||
		values["seem_volume_table_misses_total"] != 1 {
		t.Fatalf("unexpected table metrics: %v", values)
	}
	if values["seem_volume_table_cells"] != 151*81 {
		t.Fatalf("unexpected cell count %v", values["seem_volume_table_cells"])
	}
}
