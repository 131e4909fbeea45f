package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records
// nothing, which keeps tests and optional wiring simple.
type Metrics struct {
	// Pipeline metrics
	Submissions  *prometheus.CounterVec
	ChatMessages *prometheus.CounterVec

	// Collaborator metrics
	CollaboratorLatency *prometheus.HistogramVec
	StatusProbes        *prometheus.CounterVec

	// Messaging metrics
	EventsPublished *prometheus.CounterVec
	EventsReceived  *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Generate-and-submit runs by outcome and failing stage",
		}, []string{"outcome", "stage"}),
		ChatMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages stored by role",
		}, []string{"role"}),
		CollaboratorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_duration_seconds",
			Help:      "Duration of calls to external collaborators",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"collaborator", "operation", "status"}),
		StatusProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_status_probes_total",
			Help:      "Blob storage connectivity probes by result",
		}, []string{"connected", "cached"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the broker",
		}, []string{"event_type", "status"}),
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Domain events consumed from the broker",
		}, []string{"event_type"}),
	}
}

// ObserveCollaborator records the duration of one collaborator call.
func (m *Metrics) ObserveCollaborator(collaborator, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CollaboratorLatency.WithLabelValues(collaborator, operation, status).Observe(time.Since(start).Seconds())
}

// IncSubmission counts a finished submission. stage is empty on success.
func (m *Metrics) IncSubmission(outcome, stage string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome, stage).Inc()
}

func (m *Metrics) IncChatMessage(role string) {
	if m == nil {
		return
	}
	m.ChatMessages.WithLabelValues(role).Inc()
}

func (m *Metrics) IncStatusProbe(connected, cached bool) {
	if m == nil {
		return
	}
	m.StatusProbes.WithLabelValues(boolLabel(connected), boolLabel(cached)).Inc()
}

func (m *Metrics) IncEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) IncEventReceived(eventType string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(eventType).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
