package push

import (
	"context"
	"encoding/json"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/pkg/logger"
	"github.com/jwalitptl/dentallab-api/pkg/messaging"
)

// DefaultChannel is the broker channel shared by all API instances.
const DefaultChannel = "dentallab:push"

// BrokerChannel publishes events to the broker so that whichever instance
// holds the recipient's session delivers it.
type BrokerChannel struct {
	broker  messaging.Broker
	channel string
}

func NewBrokerChannel(broker messaging.Broker, channel string) *BrokerChannel {
	if channel == "" {
		channel = DefaultChannel
	}
	return &BrokerChannel{broker: broker, channel: channel}
}

func (c *BrokerChannel) Send(ctx context.Context, event model.PushEvent) error {
	return c.broker.Publish(ctx, c.channel, event)
}

// Relay feeds broker events into the local hub.
type Relay struct {
	broker  messaging.Broker
	channel string
	hub     *Hub
	log     *logger.Logger
}

func NewRelay(broker messaging.Broker, channel string, hub *Hub, log *logger.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{broker: broker, channel: channel, hub: hub, log: log.With("push-relay")}
}

// Start subscribes and delivers in the background until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	msgs, err := r.broker.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}
	go r.run(ctx, msgs)
	return nil
}

func (r *Relay) run(ctx context.Context, msgs <-chan []byte) {
	for payload := range msgs {
		var event model.PushEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			r.log.Warn(err, "dropping malformed push event")
			continue
		}
		if err := r.hub.Send(ctx, event); err != nil {
			r.log.Warn(err, "failed to deliver push event", "recipient", event.Recipient.String())
		}
	}
}
