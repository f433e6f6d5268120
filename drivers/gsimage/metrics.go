package gsimage

import (
	metrics "github.com/rcrowley/go-metrics"
)

type deviceMetrics struct {
	loadOK    metrics.Counter
	loadError metrics.Counter

	storeOK         metrics.Counter
	storeTimeout    metrics.Counter
	storePIOTimeout metrics.Counter
	storeLatency    metrics.Timer
}

func newDeviceMetrics(r metrics.Registry) *deviceMetrics {
	return &deviceMetrics{
		loadOK:          metrics.GetOrRegisterCounter("gsimage.load.ok", r),
		loadError:       metrics.GetOrRegisterCounter("gsimage.load.error", r),
		storeOK:         metrics.GetOrRegisterCounter("gsimage.store.ok", r),
		storeTimeout:    metrics.GetOrRegisterCounter("gsimage.store.timeout", r),
		storePIOTimeout: metrics.GetOrRegisterCounter("gsimage.store.pio_timeout", r),
		storeLatency:    metrics.GetOrRegisterTimer("gsimage.store.latency", r),
	}
}
