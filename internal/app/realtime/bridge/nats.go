/*
Package bridge connects Hub instances through NATS so live events reach users whose
sessions live on a sibling instance.

Core NATS, no JetStream: the live channel is an at-most-once, best-effort path and
a user that misses an event converges on the next REST fetch. Durable replay would
duplicate what the store already guarantees.
*/
package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"marketchat/internal/app/realtime"
	"marketchat/internal/pkg/logx"
)

const subjectPrefix = "marketchat.user"

// envelope is the wire format between instances. Origin carries the publishing
// instance ID so an instance never re-delivers its own publications.
type envelope struct {
	Origin string         `json:"origin"`
	UserID string         `json:"userId"`
	Event  realtime.Event `json:"event"`
}

// NATSBridge publishes undeliverable events to per-user subjects and delivers
// events published by sibling instances to local sessions.
type NATSBridge struct {
	nc         *nats.Conn
	sub        *nats.Subscription
	instanceID string
	hub        *realtime.Hub
	logger     zerolog.Logger
}

// NewNATSBridge connects to the NATS server, subscribes to the per-user subject
// space, and wires received events into the hub's local delivery path.
func NewNATSBridge(natsURL string, hub *realtime.Hub) (*NATSBridge, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("marketchat"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	b := &NATSBridge{
		nc:         nc,
		instanceID: uuid.New().String(),
		hub:        hub,
		logger:     logx.Logger().With().Str("component", "NATSBridge").Logger(),
	}

	sub, err := nc.Subscribe(subjectPrefix+".>", b.handleInbound)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s.>: %w", subjectPrefix, err)
	}
	b.sub = sub

	b.logger.Info().Str("instance_id", b.instanceID).Msg("NATS bridge connected.")
	return b, nil
}

// Publish implements realtime.Bridge. Errors are reported to the caller, which
// logs and drops; there is no retry on the live path.
func (b *NATSBridge) Publish(userID string, event realtime.Event) error {
	data, err := json.Marshal(envelope{
		Origin: b.instanceID,
		UserID: userID,
		Event:  event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal bridge envelope: %w", err)
	}

	return b.nc.Publish(subjectPrefix+"."+userID, data)
}

// handleInbound delivers an event published by a sibling instance to local
// sessions. Malformed envelopes are logged and discarded.
func (b *NATSBridge) handleInbound(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		b.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Discarding malformed bridge envelope.")
		return
	}

	if env.Origin == b.instanceID || env.UserID == "" {
		return
	}

	b.hub.DeliverLocal(env.UserID, env.Event)
}

// Close drains the subscription and closes the NATS connection.
func (b *NATSBridge) Close() {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to unsubscribe bridge subscription.")
		}
	}
	if b.nc != nil {
		b.nc.Close()
	}
}
