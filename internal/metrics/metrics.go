// Package metrics exposes Prometheus collectors for the song pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jo-hoe/mbtisong/internal/musicgen"
)

var _ musicgen.Observer = (*Metrics)(nil)

// Metrics owns a private registry so tests and multiple servers do not clash.
type Metrics struct {
	reg *prometheus.Registry

	submissions    *prometheus.CounterVec
	polls          *prometheus.CounterVec
	generations    *prometheus.CounterVec
	generationTime prometheus.Histogram
	pollAttempts   prometheus.Histogram
	lyrics         *prometheus.CounterVec
	engagement     *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mbtisong_music_submissions_total",
			Help: "Music task submissions by result.",
		}, []string{"result"}),
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mbtisong_music_polls_total",
			Help: "Status polls by normalized status; transient misses are counted as status \"miss\".",
		}, []string{"status"}),
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mbtisong_music_generations_total",
			Help: "Finished generation calls by outcome.",
		}, []string{"outcome"}),
		generationTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mbtisong_music_generation_seconds",
			Help:    "Wall time of generation calls.",
			Buckets: []float64{5, 15, 30, 60, 90, 120, 180, 300},
		}),
		pollAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mbtisong_music_poll_attempts",
			Help:    "Poll attempts used per generation call.",
			Buckets: []float64{1, 5, 10, 20, 40, 70, 100},
		}),
		lyrics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mbtisong_lyrics_total",
			Help: "Lyrics produced by source.",
		}, []string{"source"}),
		engagement: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mbtisong_engagement_records_total",
			Help: "Engagement appends by result.",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mbtisong_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mbtisong_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry is exposed for extra collectors such as queue depth.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// QueueDepth publishes fn as the pending job gauge.
func (m *Metrics) QueueDepth(fn func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mbtisong_queue_depth",
		Help: "Song jobs waiting for a worker.",
	}, func() float64 { return float64(fn()) })
}

func (m *Metrics) Submitted(ok bool) {
	m.submissions.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) Polled(status musicgen.JobStatus, miss bool) {
	label := status.String()
	if miss {
		label = "miss"
	}
	m.polls.WithLabelValues(label).Inc()
}

func (m *Metrics) Finished(kind musicgen.Kind, attempts int, elapsed time.Duration) {
	outcome := "success"
	if kind != musicgen.KindNone {
		outcome = kind.String()
	}
	m.generations.WithLabelValues(outcome).Inc()
	m.generationTime.Observe(elapsed.Seconds())
	if attempts > 0 {
		m.pollAttempts.Observe(float64(attempts))
	}
}

func (m *Metrics) LyricsWritten(source string) {
	m.lyrics.WithLabelValues(source).Inc()
}

func (m *Metrics) EngagementRecorded(ok bool) {
	m.engagement.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
