package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	testlogr "github.com/alphabill-org/wasm-framebuffer/internal/testutils/logger"
)

/*
NOP creates observability implementation where everything is no-op.
Use it for tests for which it absolutely doesn't make sense to create any logs or metrics.
*/
func NOP() *Observability {
	return &Observability{
		mp:  noop.NewMeterProvider(),
		log: testlogr.NOP(),
	}
}

/*
Default creates observability implementation for test "t": logs go through
t.Log and metrics are collected by manual reader so the test can inspect them
with Collect.
*/
func Default(t *testing.T) *Observability {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down meter provider: %v", err)
		}
	})
	return &Observability{
		mp:     mp,
		reader: reader,
		log:    testlogr.New(t),
	}
}

type Observability struct {
	mp     metric.MeterProvider
	reader *sdkmetric.ManualReader
	log    *slog.Logger
}

func (o *Observability) Logger() *slog.Logger { return o.log }

func (o *Observability) Meter(name string, options ...metric.MeterOption) metric.Meter {
	return o.mp.Meter(name, options...)
}

func (o *Observability) PrometheusRegisterer() prometheus.Registerer { return nil }

/*
Collect returns metrics recorded so far. Only works with Observability
created by Default.
*/
func (o *Observability) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if o.reader == nil {
		t.Fatal("observability doesn't have metric reader")
	}
	if err := o.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %v", err)
	}
	return rm
}

/*
Sum returns the total of the int64 counter "name" summed over all attribute
sets. Returns false when metric with that name was not found.
*/
func Sum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			var total int64
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range d.DataPoints {
					total += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range d.DataPoints {
					total += dp.Value
				}
			default:
				return 0, false
			}
			return total, true
		}
	}
	return 0, false
}
