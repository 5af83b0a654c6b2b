package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// WatermillBridge implements the Publisher and Subscriber interfaces using watermill's GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger *slog.Logger
}

// Metadata key used to carry our topic through watermill's message.
const metaKeyTopic = "topic"

// NewWatermillBridge initializes an in-memory bus.
//
// Publish blocks until every subscriber has acknowledged the message, so a
// single publishing goroutine observes FIFO delivery per topic.
func NewWatermillBridge() *WatermillBridge {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)

	return &WatermillBridge{
		pub:    goChannel,
		sub:    goChannel,
		logger: slog.Default().With("component", "pubsub"),
	}
}

func mapToWatermillMessage(msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)
	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	return wmMsg
}

func mapToPubSubMessage(wmMsg *message.Message) Message {
	metadata := make(map[string]string, len(wmMsg.Metadata))
	for k, v := range wmMsg.Metadata {
		if k != metaKeyTopic {
			metadata[k] = v
		}
	}

	return Message{
		Topic:    wmMsg.Metadata.Get(metaKeyTopic),
		Payload:  wmMsg.Payload,
		Metadata: metadata,
	}
}

// Publish implements the Publisher interface.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return wb.pub.Publish(msg.Topic, mapToWatermillMessage(msg))
}

// Subscribe implements the Subscriber interface. It returns once the
// subscription is registered; messages are handled on a dedicated goroutine,
// one at a time.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wmMsg := range messages {
			msg := mapToPubSubMessage(wmMsg)

			// The in-memory bus redelivers nacked messages forever, so handler
			// failures are logged and the message is acknowledged regardless.
			if err := handler(ctx, msg); err != nil {
				wb.logger.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
			}
			wmMsg.Ack()
		}
		wb.logger.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts down the bus and ends every subscription.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
