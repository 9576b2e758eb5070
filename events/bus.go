package events

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	MetaTournamentID = "tournament_id"
	MetaTopic        = "topic"
)

// Bus is the in-process event bus between the outbox relay and its
// consumers (advancement engine, websocket broadcaster). Delivery is
// at-least-once end to end because the relay republishes anything it could
// not mark as published; consumers deduplicate on the message uuid or rely
// on conditional writes.
type Bus struct {
	pubsub *gochannel.GoChannel
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			watermill.NewSlogLogger(logger),
		),
	}
}

// Publish sends one raw payload. The message uuid is the stable outbox
// event id.
func (b *Bus) Publish(topic, eventID string, tournamentID string, payload []byte) error {
	msg := message.NewMessage(eventID, payload)
	msg.Metadata.Set(MetaTopic, topic)
	msg.Metadata.Set(MetaTournamentID, tournamentID)
	return b.pubsub.Publish(topic, msg)
}

// Subscribe returns the message stream for one topic. Messages must be
// Acked or Nacked by the consumer.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
