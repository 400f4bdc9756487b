// Package metrics defines the Prometheus collectors for conversions,
// video runs and the HTTP API. Collectors register on the default
// registry; mount promhttp.Handler() to expose them.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/video"
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "img2ascii_conversions_total",
			Help: "Total number of single-frame conversions",
		},
		[]string{"converter", "status"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "img2ascii_conversion_duration_seconds",
			Help:    "Single-frame conversion duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"converter"},
	)
)

// Video pipeline metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "img2ascii_pipeline_runs_total",
			Help: "Total number of video pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	FramesConverted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "img2ascii_frames_converted_total",
			Help: "Total number of video frames converted",
		},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "img2ascii_pipeline_phase_duration_seconds",
			Help:    "Video pipeline phase duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"phase"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "img2ascii_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "img2ascii_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveConversion is an img2ascii.LifecycleFunc.
func ObserveConversion(ev img2ascii.LifecycleEvent) {
	switch ev.Phase {
	case img2ascii.LifecycleComplete:
		ConversionsTotal.WithLabelValues(ev.Converter, "ok").Inc()
		ConversionDuration.WithLabelValues(ev.Converter).Observe(ev.Elapsed.Seconds())
	case img2ascii.LifecycleError:
		status := "error"
		if errors.Is(ev.Err, img2ascii.ErrInvalidInput) {
			status = "invalid"
		}
		ConversionsTotal.WithLabelValues(ev.Converter, status).Inc()
	}
}

// Chain wraps a LifecycleFunc so it also records metrics.
func Chain(next img2ascii.LifecycleFunc) img2ascii.LifecycleFunc {
	return func(ev img2ascii.LifecycleEvent) {
		ObserveConversion(ev)
		if next != nil {
			next(ev)
		}
	}
}

// CountFrames wraps a video.ProgressFunc, counting every converted frame.
func CountFrames(next video.ProgressFunc) video.ProgressFunc {
	return func(p video.Progress) {
		if p.Phase == video.StateConverting && p.Fraction > 0 {
			FramesConverted.Inc()
		}
		if next != nil {
			next(p)
		}
	}
}

// ObserveRun records the outcome and phase timings of a pipeline run.
func ObserveRun(res *video.Result, err error) {
	if err != nil {
		PipelineRunsTotal.WithLabelValues(video.StateFailed.String()).Inc()
		return
	}
	PipelineRunsTotal.WithLabelValues(res.State.String()).Inc()
	for phase, d := range res.Phases {
		PhaseDuration.WithLabelValues(phase.String()).Observe(d.Seconds())
	}
}

// ObserveHTTP records one API request.
func ObserveHTTP(method, route, status string, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
