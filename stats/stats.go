// Package stats exposes the graph/iterator/muxer counters and
// histograms named in SPEC_FULL's domain stack: a small Prometheus
// registry a driver loop (cmd/ctfdump) feeds from the outside, rather
// than metrics wired into graph/iterator/muxer themselves -- those
// packages stay free of an observability dependency, matching how
// linkerd2's own metrics helpers (multicluster/service-mirror/metrics.go)
// build one promauto.With(registry) factory per owning component
// instead of registering against the global DefaultRegisterer.
package stats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
)

// Registry collects one run's metrics against a private
// prometheus.Registry -- never the package-global DefaultRegisterer --
// so that two graphs (or two test cases) in the same process never
// collide on metric names.
type Registry struct {
	reg *prometheus.Registry

	messages        *prometheus.CounterVec
	runOnceAgain    prometheus.Counter
	runOnceEnd      prometheus.Counter
	runOnceErrors   *prometheus.CounterVec
	runOnceDuration prometheus.Histogram
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Registry{
		reg: reg,
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_messages_total",
			Help: "Messages produced, labeled by kind (event, packet_begin, ...).",
		}, []string{"kind"}),
		runOnceAgain: f.NewCounter(prometheus.CounterOpts{
			Name: "ctf_run_once_again_total",
			Help: "graph.Graph.RunOnce calls that returned errs.Again.",
		}),
		runOnceEnd: f.NewCounter(prometheus.CounterOpts{
			Name: "ctf_run_once_end_total",
			Help: "graph.Graph.RunOnce calls that returned errs.End.",
		}),
		runOnceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ctf_run_once_errors_total",
			Help: "graph.Graph.RunOnce calls that failed, labeled by errs.Kind.",
		}, []string{"kind"}),
		runOnceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ctf_run_once_duration_seconds",
			Help:    "Wall time of one graph.Graph.RunOnce call.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveMessages records one message per element of batch, labeled by
// kind. Called from a sink's consume callback, the one place a batch's
// contents are actually in hand.
func (r *Registry) ObserveMessages(batch []*message.Message) {
	for _, m := range batch {
		r.messages.WithLabelValues(m.Kind.String()).Inc()
	}
}

// ObserveRunOnce records the outcome and duration of one
// graph.Graph.RunOnce call.
func (r *Registry) ObserveRunOnce(d time.Duration, err error) {
	r.runOnceDuration.Observe(d.Seconds())
	switch {
	case err == nil:
	case errs.IsAgain(err):
		r.runOnceAgain.Inc()
	case errs.IsEnd(err):
		r.runOnceEnd.Inc()
	default:
		label := "unknown"
		if kind, ok := errs.KindOf(err); ok {
			label = kind.String()
		}
		r.runOnceErrors.WithLabelValues(label).Inc()
	}
}

// Handler serves this registry's metrics for a /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
