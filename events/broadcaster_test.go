package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterBridgesBusIntoRooms(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := NewBus(discardLogger())
	defer bus.Close()

	hub := NewHub(discardLogger())
	client := &Client{send: make(chan []byte, 4), room: "7"}
	hub.rooms["7"] = map[*Client]bool{client: true}

	require.NoError(t, StartBroadcaster(ctx, bus, hub, discardLogger()))

	payload, err := json.Marshal(MatchEvent{TournamentID: 7, MatchID: 1, Status: models.MatchCompleted})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(TopicMatchCompleted, "ev-1", "7", payload))

	select {
	case raw := <-client.send:
		var msg StreamMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, TopicMatchCompleted, msg.Type)
		assert.Equal(t, "7", msg.RoomID)
		assert.JSONEq(t, string(payload), string(msg.Payload))
	case <-ctx.Done():
		t.Fatal("timed out waiting for broadcast")
	}
}
