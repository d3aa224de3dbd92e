package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/logging"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/bytedance/sonic"
)

const (
	metadataTopic       = "topic"
	metadataPublishedAt = "published_at"
)

// Bus is the in-process message bus the engine publishes to after commit.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *logging.Logger
}

func NewBus(logger *logging.Logger, buffer int64) *Bus {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, NewWatermillLogger(logger)),
		logger: logger,
	}
}

// Publish encodes payload as JSON and hands it to every subscriber of topic.
// Messages published before anyone subscribes are dropped.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(metadataTopic, topic)
	msg.Metadata.Set(metadataPublishedAt, time.Now().UTC().Format(time.RFC3339Nano))

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	b.logger.DebugContext(ctx, "event published", "topic", topic, "message_id", msg.UUID)
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
