// Package publisher streams committed audit entries to Kafka.
//
// Export is best-effort: entries are buffered and produced by a background
// worker. A full buffer or an unavailable broker drops entries (counted in
// metrics) and never fails the mutation that produced them; the in-process
// trail stays the record of truth.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"profile-service/internal/domain"
	"profile-service/internal/platform/metrics"
	"profile-service/pkg/platform/circuit"
)

const defaultBufferSize = 1024

// Producer is the subset of *kgo.Client used by the exporter.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaExporter implements audit.Exporter.
type KafkaExporter struct {
	producer Producer
	topic    string
	buffer   chan domain.AuditEntry
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics

	closeOnce sync.Once
	done      chan struct{}
}

type Option func(*KafkaExporter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *KafkaExporter) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *KafkaExporter) {
		e.metrics = m
	}
}

func WithBufferSize(n int) Option {
	return func(e *KafkaExporter) {
		if n > 0 {
			e.buffer = make(chan domain.AuditEntry, n)
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(e *KafkaExporter) {
		e.breaker = b
	}
}

// NewKafkaClient builds a franz-go client producing to topic by default.
func NewKafkaClient(brokers []string, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(0),
	)
}

// NewKafkaExporter starts the export worker. Call Close to drain and stop it.
func NewKafkaExporter(producer Producer, topic string, opts ...Option) *KafkaExporter {
	e := &KafkaExporter{
		producer: producer,
		topic:    topic,
		buffer:   make(chan domain.AuditEntry, defaultBufferSize),
		breaker:  circuit.New("audit-export"),
		logger:   slog.New(slog.DiscardHandler),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

// Export enqueues entry without blocking.
func (e *KafkaExporter) Export(ctx context.Context, entry domain.AuditEntry) {
	select {
	case e.buffer <- entry:
	default:
		e.metrics.IncrementAuditExportDropped()
		e.logger.WarnContext(ctx, "audit export buffer full, dropping entry",
			"profile_id", entry.ProfileID,
			"action", entry.Action,
		)
	}
}

// Close stops accepting entries and waits for the buffer to drain.
func (e *KafkaExporter) Close() {
	e.closeOnce.Do(func() {
		close(e.buffer)
		<-e.done
		e.producer.Close()
	})
}

func (e *KafkaExporter) run() {
	defer close(e.done)
	ctx := context.Background()
	for entry := range e.buffer {
		e.publish(ctx, entry)
	}
}

func (e *KafkaExporter) publish(ctx context.Context, entry domain.AuditEntry) {
	if !e.breaker.Allow() {
		e.metrics.IncrementAuditExportFailure()
		return
	}
	value, err := json.Marshal(entry)
	if err != nil {
		e.metrics.IncrementAuditExportFailure()
		e.logger.Error("audit export marshal failed", "error", err)
		return
	}
	record := &kgo.Record{
		Topic: e.topic,
		Key:   []byte(entry.ProfileID.String()),
		Value: value,
	}
	if err := e.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		e.metrics.IncrementAuditExportFailure()
		if _, change := e.breaker.RecordFailure(); change.Opened {
			e.logger.Warn("audit export circuit opened", "topic", e.topic, "error", err)
		}
		return
	}
	if _, change := e.breaker.RecordSuccess(); change.Closed {
		e.logger.Info("audit export circuit closed", "topic", e.topic)
	}
}
