package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the consumer and producer instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	received   *prometheus.CounterVec
	processed  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	deadLetter *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	published  *prometheus.CounterVec
	publishErr *prometheus.CounterVec
}

// NewMetrics registers the instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	consumer := []string{"topic", "consumer_group"}
	return &Metrics{
		received: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_received_total",
			Help: "Messages fetched from the broker.",
		}, consumer),
		processed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_processed_total",
			Help: "Messages handled successfully.",
		}, consumer),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_failed_total",
			Help: "Messages that exhausted their retries.",
		}, consumer),
		deadLetter: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_dlq_published_total",
			Help: "Messages forwarded to the dead-letter topic.",
		}, consumer),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Handler latency including retries.",
			Buckets: prometheus.DefBuckets,
		}, consumer),
		published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Messages published.",
		}, []string{"topic"}),
		publishErr: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Publish failures.",
		}, []string{"topic"}),
	}
}

func (m *Metrics) count(vec func(*Metrics) *prometheus.CounterVec, labels ...string) {
	if m != nil {
		vec(m).WithLabelValues(labels...).Inc()
	}
}

func (m *Metrics) observe(seconds float64, topic, group string) {
	if m != nil {
		m.duration.WithLabelValues(topic, group).Observe(seconds)
	}
}

func received(m *Metrics) *prometheus.CounterVec   { return m.received }
func processed(m *Metrics) *prometheus.CounterVec  { return m.processed }
func failed(m *Metrics) *prometheus.CounterVec     { return m.failed }
func deadLetter(m *Metrics) *prometheus.CounterVec { return m.deadLetter }
func published(m *Metrics) *prometheus.CounterVec  { return m.published }
func publishErr(m *Metrics) *prometheus.CounterVec { return m.publishErr }
