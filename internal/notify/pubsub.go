package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/hackmd"
)

// PubSub publishes run summaries to a Google Cloud Pub/Sub topic. It
// authenticates through Application Default Credentials.
type PubSub struct {
	client *pubsub.Client
	topic  string
	logger *zap.Logger
}

// NewPubSub connects the client and verifies the topic is active
// before any run completes.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	name := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	topic, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("closing pubsub client after topic lookup failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get pubsub topic %s: %w", topicID, err)
	}
	if topic.State != pubsubpb.Topic_ACTIVE {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("closing pubsub client after topic state check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %s is not active", topicID)
	}

	return &PubSub{client: client, topic: topic.Name, logger: logger}, nil
}

// Notify publishes the summary as JSON and waits for the server ack so
// the CLI can report delivery before exiting.
func (p *PubSub) Notify(ctx context.Context, summary hackmd.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	result := p.client.Publisher(p.topic).Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"run_id": summary.RunID},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}

	p.logger.Info("run notification published",
		zap.String("message_id", id),
		zap.String("run_id", summary.RunID),
	)
	return nil
}

// Close releases the underlying client connection.
func (p *PubSub) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
