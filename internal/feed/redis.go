package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
)

// channelPrefix namespaces Carewire feed traffic on a shared Redis.
const channelPrefix = "carewire:feed:"

// envelope is the wire form of an Event on Redis.
type envelope struct {
	Collection string          `json:"collection"`
	Row        json.RawMessage `json:"row"`
}

// Bridge fans insert events out across processes over Redis pub/sub.
// The publishing side forwards local inserts; the consuming side
// republishes remote inserts into the local hub. Redis preserves
// per-channel publish order, so commit order survives the hop.
type Bridge struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

// NewBridge creates a bridge between the local hub and Redis.
func NewBridge(client *redis.Client, hub *Hub, logger *zap.Logger) *Bridge {
	return &Bridge{client: client, hub: hub, logger: logger}
}

// Publish forwards one local insert to Redis for other processes.
func (b *Bridge) Publish(ctx context.Context, collection string, row any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("feed: marshal %s row: %w", collection, err)
	}
	payload, err := json.Marshal(envelope{Collection: collection, Row: data})
	if err != nil {
		return fmt.Errorf("feed: marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+collection, payload).Err(); err != nil {
		return fmt.Errorf("feed: publish %s: %w", collection, err)
	}
	return nil
}

// Run consumes all Carewire feed channels and republishes rows into the
// local hub. Blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("feed: redis subscription closed")
			}
			collection := strings.TrimPrefix(msg.Channel, channelPrefix)
			row, err := decodeRow(collection, []byte(msg.Payload))
			if err != nil {
				b.logger.Warn("feed: dropping undecodable event",
					zap.String("collection", collection), zap.Error(err))
				continue
			}
			b.hub.Publish(Event{Collection: collection, Row: row})
		}
	}
}

// decodeRow unmarshals a wire envelope into the typed row for its
// collection.
func decodeRow(collection string, payload []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	switch collection {
	case store.LiveMessages:
		var row models.LiveMessage
		if err := json.Unmarshal(env.Row, &row); err != nil {
			return nil, err
		}
		return row, nil
	case store.TriageSessions:
		var row models.TriageSession
		if err := json.Unmarshal(env.Row, &row); err != nil {
			return nil, err
		}
		return row, nil
	case store.Prescriptions:
		var row models.Prescription
		if err := json.Unmarshal(env.Row, &row); err != nil {
			return nil, err
		}
		return row, nil
	case store.Appointments:
		var row models.Appointment
		if err := json.Unmarshal(env.Row, &row); err != nil {
			return nil, err
		}
		return row, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
}
