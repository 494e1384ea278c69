// metrics.go - Prometheus metrics for requests, submissions, uploads,
// notifications and logins.
package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its own registry so several servers (tests) can coexist.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	uploadedFiles prometheus.Counter
	uploadedBytes prometheus.Counter
	notifications *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

// NewMetrics registers the intake collectors plus Go and process collectors.
func NewMetrics(build BuildInfo) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_http_requests_total",
			Help: "HTTP requests by status class.",
		}, []string{"class"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Applicant and service-request submissions by outcome.",
		}, []string{"kind", "outcome"}),
		uploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_uploaded_files_total",
			Help: "Files written to the content area.",
		}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_uploaded_bytes_total",
			Help: "Bytes written to the content area.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_notifications_total",
			Help: "Notification emails by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
	}

	info := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "intake_info",
		Help:        "Application version info.",
		ConstLabels: prometheus.Labels{"version": build.Version, "commit": build.Commit},
	})
	info.Set(1)

	reg.MustRegister(
		m.requests, m.submissions, m.uploadedFiles, m.uploadedBytes,
		m.notifications, m.logins, info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest counts a response by status class ("2xx", "4xx", ...).
func (m *Metrics) RecordRequest(statusCode int) {
	m.requests.WithLabelValues(strconv.Itoa(statusCode/100) + "xx").Inc()
}

// RecordSubmission counts a /submit or /upload outcome.
func (m *Metrics) RecordSubmission(kind string, ok bool) {
	m.submissions.WithLabelValues(kind, outcome(ok)).Inc()
}

// RecordUpload counts one stored file.
func (m *Metrics) RecordUpload(bytes int64) {
	m.uploadedFiles.Inc()
	m.uploadedBytes.Add(float64(bytes))
}

func (m *Metrics) RecordNotification(ok bool) {
	m.notifications.WithLabelValues(outcome(ok)).Inc()
}

// RecordLoginAttempt counts a login with outcome success, not_found or failed.
func (m *Metrics) RecordLoginAttempt(result string) {
	m.logins.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
