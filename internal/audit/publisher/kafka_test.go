package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
	"profile-service/pkg/platform/circuit"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func TestKafkaExporter_PublishesKeyedByProfile(t *testing.T) {
	producer := &fakeProducer{}
	exporter := NewKafkaExporter(producer, "profile.audit")

	profileID := id.NewProfileID()
	exporter.Export(context.Background(), domain.AuditEntry{ProfileID: profileID, Action: domain.AuditUpdate, ActorID: "u1"})
	exporter.Close()

	require.Len(t, producer.records, 1)
	rec := producer.records[0]
	assert.Equal(t, "profile.audit", rec.Topic)
	assert.Equal(t, profileID.String(), string(rec.Key))

	var decoded domain.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, domain.AuditUpdate, decoded.Action)
	assert.True(t, producer.closed)
}

func TestKafkaExporter_FailuresOpenBreaker(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	breaker := circuit.New("audit-export", circuit.WithFailureThreshold(2))
	exporter := NewKafkaExporter(producer, "profile.audit", WithBreaker(breaker))

	for range 3 {
		exporter.Export(context.Background(), domain.AuditEntry{ProfileID: id.NewProfileID(), Action: domain.AuditCreate, ActorID: "u1"})
	}
	exporter.Close()

	assert.True(t, breaker.IsOpen())
	assert.Empty(t, producer.records)
}

func TestKafkaExporter_FullBufferDropsWithoutBlocking(t *testing.T) {
	block := make(chan struct{})
	producer := &blockingProducer{release: block}
	exporter := NewKafkaExporter(producer, "profile.audit", WithBufferSize(1))

	done := make(chan struct{})
	go func() {
		for range 10 {
			exporter.Export(context.Background(), domain.AuditEntry{ProfileID: id.NewProfileID(), Action: domain.AuditCreate, ActorID: "u1"})
		}
		close(done)
	}()
	<-done
	close(block)
	exporter.Close()
	assert.LessOrEqual(t, producer.count(), 2)
}

type blockingProducer struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (b *blockingProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	<-b.release
	b.mu.Lock()
	b.n += len(rs)
	b.mu.Unlock()
	return kgo.ProduceResults{{Record: rs[0]}}
}

func (b *blockingProducer) Close() {}

func (b *blockingProducer) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}
