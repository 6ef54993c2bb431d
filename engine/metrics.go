package engine

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

type engineMetrics struct {
	frames     metric.Int64Counter
	skipped    metric.Int64Counter
	renderDur  metric.Float64Histogram
	resizes    metric.Int64Counter
	oom        metric.Int64Counter
	version    metric.Int64Gauge
	arenaInUse metric.Int64Gauge
	arenaLimit metric.Int64Gauge
}

func newMetrics(m metric.Meter) (*engineMetrics, error) {
	em := &engineMetrics{}
	var err error
	em.frames, err = m.Int64Counter("frames", metric.WithDescription("Number of frames rendered"), metric.WithUnit("{frame}"))
	if err != nil {
		return nil, fmt.Errorf("creating counter for rendered frames: %w", err)
	}
	em.skipped, err = m.Int64Counter("frames.skipped", metric.WithDescription("Number of render calls which didn't produce new frame"), metric.WithUnit("{frame}"))
	if err != nil {
		return nil, fmt.Errorf("creating counter for skipped frames: %w", err)
	}
	em.renderDur, err = m.Float64Histogram("render.time",
		metric.WithDescription("How long it took to paint and publish a frame"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(50e-6, 100e-6, 200e-6, 400e-6, 800e-6, 0.0016, 0.004, 0.008, 0.016, 0.033))
	if err != nil {
		return nil, fmt.Errorf("creating histogram for render time: %w", err)
	}
	em.resizes, err = m.Int64Counter("resize", metric.WithDescription("Number of resize requests"))
	if err != nil {
		return nil, fmt.Errorf("creating counter for resizes: %w", err)
	}
	em.oom, err = m.Int64Counter("oom", metric.WithDescription("Number of operations failed because of out-of-memory"))
	if err != nil {
		return nil, fmt.Errorf("creating counter for out-of-memory errors: %w", err)
	}
	em.version, err = m.Int64Gauge("frame.version", metric.WithDescription("Version of the published frame"))
	if err != nil {
		return nil, fmt.Errorf("creating gauge for frame version: %w", err)
	}
	em.arenaInUse, err = m.Int64Gauge("arena.used", metric.WithDescription("Bytes allocated from the memory arena"), metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("creating gauge for arena usage: %w", err)
	}
	em.arenaLimit, err = m.Int64Gauge("arena.limit", metric.WithDescription("Committed size of the linear memory"), metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("creating gauge for arena limit: %w", err)
	}
	return em, nil
}
