package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	mp "github.com/nbrownus/go-metrics-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/clktmr/ps2/config"
)

// startStats exports the metrics registry to prometheus while ctx is alive.
// Nothing is started unless stats.listen is set.
func startStats(ctx context.Context, g *errgroup.Group, l *logrus.Logger, c *config.C) error {
	listen := c.GetString("stats.listen", "")
	if listen == "" {
		return nil
	}
	path := c.GetString("stats.path", "/metrics")
	interval := c.GetDuration("stats.interval", 10*time.Second)
	if interval <= 0 {
		return fmt.Errorf("stats.interval was an invalid duration: %s", c.GetString("stats.interval", ""))
	}
	namespace := c.GetString("stats.namespace", "ps2")
	subsystem := c.GetString("stats.subsystem", "")

	pr := prometheus.NewRegistry()
	pClient := mp.NewPrometheusProvider(metrics.DefaultRegistry, namespace, subsystem, pr, interval)
	go pClient.UpdatePrometheusMetrics()

	info := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "info",
		Help:        "Version information for the gsimage binary",
		ConstLabels: prometheus.Labels{"goversion": runtime.Version()},
	})
	pr.MustRegister(info)
	info.Set(1)

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(pr, promhttp.HandlerOpts{ErrorLog: l}))
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		l.Infof("Prometheus stats listening on %s at %s", listen, path)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown(context.Background())
	})
	return nil
}
