package events

import (
	"context"
	"encoding/json"
	"log/slog"
)

var broadcastTopics = []string{
	TopicMatchScheduled,
	TopicCheckInOpened,
	TopicMatchReady,
	TopicMatchStarted,
	TopicScoreUpdated,
	TopicMatchCompleted,
	TopicMatchForfeited,
	TopicMatchCanceled,
	TopicDisputeRaised,
	TopicDisputeResolved,
	TopicBracketUpdated,
	TopicTournamentCompleted,
}

// StartBroadcaster bridges every bus topic into the websocket hub. Messages
// are always acked: a broadcast that cannot be delivered is dropped, never
// retried against the underlying state transition.
func StartBroadcaster(ctx context.Context, bus *Bus, hub *Hub, logger *slog.Logger) error {
	for _, topic := range broadcastTopics {
		messages, err := bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		topic := topic
		go func() {
			for msg := range messages {
				room := msg.Metadata.Get(MetaTournamentID)
				if room != "" {
					hub.BroadcastToRoom(room, StreamMessage{Type: topic, Payload: json.RawMessage(msg.Payload)})
				} else {
					logger.Warn("event without tournament metadata", slog.String("topic", topic), slog.String("event_id", msg.UUID))
				}
				msg.Ack()
			}
		}()
	}
	return nil
}
