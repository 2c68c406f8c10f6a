// Package dispatch publishes device command envelopes to the commands topic.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/oskim/tapflow-backend/pkg/config"
	"github.com/oskim/tapflow-backend/pkg/logger"
	pubsubclient "github.com/oskim/tapflow-backend/pkg/pubsub"
)

const (
	channelCommand = "command"
	channelPermit  = "permit"
)

// messagePublisher narrows the Pub/Sub publisher to a synchronous call so
// tests can capture envelopes without a broker.
type messagePublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) (string, error)
}

type publisherAdapter struct {
	publisher *pubsub.Publisher
}

func (a *publisherAdapter) Publish(ctx context.Context, msg *pubsub.Message) (string, error) {
	return a.publisher.Publish(ctx, msg).Get(ctx)
}

type dispenseEnvelope struct {
	Action    string `json:"action"`
	OrderID   string `json:"order_id"`
	Timestamp string `json:"timestamp"`
}

type permitEnvelope struct {
	Action    string `json:"action"`
	Permitted bool   `json:"permitted"`
	MaxML     int    `json:"max_ml"`
	UserName  string `json:"user_name"`
	Message   string `json:"message"`
}

// Dispatcher publishes JSON command envelopes keyed by dispenser so each
// device sees its commands in order. Delivery is at-least-once; publish
// failures surface to the caller.
type Dispatcher struct {
	publisher messagePublisher
	timeout   time.Duration
	logg      *logger.Logger
	now       func() time.Time
}

// NewDispatcher wires the dispatcher to the configured commands topic.
func NewDispatcher(client *pubsubclient.Client, cfg config.PubSubConfig, logg *logger.Logger) (*Dispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	publisher := client.CommandsPublisher()
	if publisher == nil {
		return nil, fmt.Errorf("commands publisher unavailable")
	}
	publisher.EnableMessageOrdering = true

	return &Dispatcher{
		publisher: &publisherAdapter{publisher: publisher},
		timeout:   cfg.PublishTimeout,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// Dispense tells the device to start pouring the given order.
func (d *Dispatcher) Dispense(ctx context.Context, dispenserID string, orderID uuid.UUID) error {
	envelope := dispenseEnvelope{
		Action:    "dispense",
		OrderID:   orderID.String(),
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}
	return d.publish(ctx, dispenserID, channelCommand, envelope)
}

// PermitResponse answers a device permit request.
func (d *Dispatcher) PermitResponse(ctx context.Context, dispenserID string, permitted bool, maxML int, userName, message string) error {
	envelope := permitEnvelope{
		Action:    "permit_response",
		Permitted: permitted,
		MaxML:     maxML,
		UserName:  userName,
		Message:   message,
	}
	return d.publish(ctx, dispenserID, channelPermit, envelope)
}

func (d *Dispatcher) publish(ctx context.Context, dispenserID, channel string, envelope any) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding command envelope: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"dispenser_id": dispenserID,
			"channel":      channel,
		},
		OrderingKey: dispenserID,
	}

	id, err := d.publisher.Publish(ctx, msg)
	if err != nil {
		return fmt.Errorf("publishing %s to %s: %w", channel, dispenserID, err)
	}
	if d.logg != nil {
		ctx = d.logg.WithDispenserID(ctx, dispenserID)
		d.logg.Info(ctx, fmt.Sprintf("published %s message %s", channel, id))
	}
	return nil
}
