package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TopicAdmin is the subset of *kadm.Client used to provision the export topic.
type TopicAdmin interface {
	CreateTopic(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topic string) (kadm.CreateTopicResponse, error)
}

// NewTopicAdmin wraps an existing franz-go client.
func NewTopicAdmin(client *kgo.Client) *kadm.Client {
	return kadm.NewClient(client)
}

// EnsureTopic creates topic if it does not exist. Audit entries are keyed by
// profile, so per-profile ordering holds for any partition count.
func EnsureTopic(ctx context.Context, admin TopicAdmin, topic string, partitions int32, replicationFactor int16) error {
	retention := "-1"
	resp, err := admin.CreateTopic(ctx, partitions, replicationFactor, map[string]*string{
		"retention.ms": &retention,
	}, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic %q: %w", topic, err)
	}
	return nil
}
