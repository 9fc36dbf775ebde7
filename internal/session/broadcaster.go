package session

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mohoot/live-server/pkg/http/ws"
)

// Broadcaster relays committed session events to connected clients. It is
// the only path snapshots take to the wire, so every subscriber of a PIN
// observes the same documents in the same order.
type Broadcaster struct {
	redis   *redis.Client
	hub     *ws.Hub
	manager *Manager
	logger  zerolog.Logger
}

// NewBroadcaster constructs a broadcaster over the shared hub.
func NewBroadcaster(redisClient *redis.Client, hub *ws.Hub, manager *Manager, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		redis:   redisClient,
		hub:     hub,
		manager: manager,
		logger:  logger.With().Str("component", "session_broadcaster").Logger(),
	}
}

// Run subscribes to session updates and forwards them until the context is
// cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	sub := b.redis.Subscribe(ctx, UpdatesChannel)
	defer sub.Close()

	ch := sub.Channel()
	b.logger.Info().Str("channel", UpdatesChannel).Msg("session broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("session broadcaster stopped")
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(msg.Payload)
		}
	}
}

func (b *Broadcaster) dispatch(payload string) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode session event")
		return
	}

	if evt.Deleted {
		b.sendTombstone(evt)
		return
	}
	b.sendSnapshot(evt)
}

func (b *Broadcaster) sendSnapshot(evt Event) {
	if evt.Session == nil {
		return
	}
	doc, err := json.Marshal(evt.Session)
	if err != nil {
		b.logger.Warn().Err(err).Str("pin", evt.PIN).Msg("failed to encode snapshot")
		return
	}
	payload, err := json.Marshal(ws.SessionSnapshotPayload{Session: doc})
	if err != nil {
		b.logger.Warn().Err(err).Str("pin", evt.PIN).Msg("failed to encode snapshot payload")
		return
	}
	if err := b.hub.BroadcastToSession(evt.PIN, ws.Message{Type: ws.TypeSessionSnapshot, Payload: payload}); err != nil {
		b.logger.Debug().Err(err).Str("pin", evt.PIN).Msg("snapshot broadcast skipped")
	}
}

func (b *Broadcaster) sendTombstone(evt Event) {
	payload, err := json.Marshal(ws.SessionEndedPayload{PIN: evt.PIN, Reason: evt.Reason})
	if err != nil {
		b.logger.Warn().Err(err).Str("pin", evt.PIN).Msg("failed to encode tombstone payload")
		return
	}
	if err := b.hub.BroadcastToSession(evt.PIN, ws.Message{Type: ws.TypeSessionEnded, Payload: payload}); err != nil {
		b.logger.Debug().Err(err).Str("pin", evt.PIN).Msg("tombstone broadcast skipped")
	}
	b.hub.CloseSession(evt.PIN)
	b.manager.Remove(evt.PIN)
}
