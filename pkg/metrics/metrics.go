// Package metrics exposes Prometheus metrics for pipeline runs.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("csv")
//	collector.RecordRecords(1)
//	collector.RecordWaits(stats.Waits)
//
//	timer := metrics.NewTimer("run")
//	err := run()
//	metrics.ObserveRun(timer.Stop(), err)
//
// Metrics are registered with the default registry on import. Serve exposes
// them over HTTP when the CLI is given a metrics address.
package metrics

import (
	"cmp"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// RecordsTotal counts values leaving each stage.
	// Labels: stage (stage name)
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_records_total",
			Help: "Total number of values emitted by a pipeline stage",
		},
		[]string{"stage"},
	)

	// BackpressureWaits counts how often a stage's producer had to wait for
	// the downstream buffer to drain.
	BackpressureWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_backpressure_waits_total",
			Help: "Total number of producer suspensions waiting for a drain signal",
		},
		[]string{"stage"},
	)

	// PipelineRuns counts finished runs by result (success/failure).
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_pipeline_runs_total",
			Help: "Total number of pipeline runs by result",
		},
		[]string{"result"},
	)

	// PipelineDuration tracks end-to-end run time.
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "etl_pipeline_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Collector records metrics for one pipeline stage.
type Collector struct {
	name      string
	records   prometheus.Counter
	waits     prometheus.Counter
	startTime time.Time

	mu    sync.Mutex
	count int64
}

// NewCollector creates a collector labelled with the stage name.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		records:   RecordsTotal.WithLabelValues(name),
		waits:     BackpressureWaits.WithLabelValues(name),
		startTime: time.Now(),
	}
}

// Name returns the stage label.
func (c *Collector) Name() string {
	return c.name
}

// RecordRecords adds n emitted values.
func (c *Collector) RecordRecords(n int64) {
	if n <= 0 {
		return
	}
	c.records.Add(float64(n))
	c.mu.Lock()
	c.count += n
	c.mu.Unlock()
}

// RecordWaits adds n backpressure suspensions.
func (c *Collector) RecordWaits(n int64) {
	if n > 0 {
		c.waits.Add(float64(n))
	}
}

// Count returns the values recorded by this collector.
func (c *Collector) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// GetAll returns the collector's local view for logging.
func (c *Collector) GetAll() map[string]interface{} {
	return map[string]interface{}{
		"stage":   c.name,
		"records": c.Count(),
		"uptime":  time.Since(c.startTime).Seconds(),
	}
}

// ObserveRun records a finished pipeline run.
func ObserveRun(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	PipelineRuns.WithLabelValues(result).Inc()
	PipelineDuration.Observe(d.Seconds())
}

// Timer measures an operation from creation to Stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ServerOpts configures the metrics endpoint.
type ServerOpts struct {
	Addr              string
	Path              string        // defaults to "/metrics"
	ShutdownTimeout   time.Duration // defaults to 5 seconds
	ReadHeaderTimeout time.Duration // defaults to 3 seconds
}

// Serve exposes the default registry over HTTP until ctx is done. The
// returned WaitGroup completes once the server has stopped.
func Serve(ctx context.Context, opts ServerOpts, logger *zap.Logger) *sync.WaitGroup {
	opts.Path = cmp.Or(opts.Path, "/metrics")
	opts.ShutdownTimeout = cmp.Or(opts.ShutdownTimeout, 5*time.Second)
	opts.ReadHeaderTimeout = cmp.Or(opts.ReadHeaderTimeout, 3*time.Second)

	mux := http.NewServeMux()
	mux.Handle(opts.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting metrics server", zap.String("addr", opts.Addr), zap.String("path", opts.Path))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}()

	return &wg
}
