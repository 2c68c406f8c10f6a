package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

type stubPublisher struct {
	messages []*pubsub.Message
	err      error
}

func (s *stubPublisher) Publish(ctx context.Context, msg *pubsub.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.messages = append(s.messages, msg)
	return "msg-1", nil
}

func newTestDispatcher(publisher messagePublisher) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		timeout:   5 * time.Second,
		now:       func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) },
	}
}

func TestDispenseEnvelope(t *testing.T) {
	publisher := &stubPublisher{}
	dispatcher := newTestDispatcher(publisher)
	orderID := uuid.New()

	if err := dispatcher.Dispense(context.Background(), "TAP_001", orderID); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(publisher.messages) != 1 {
		t.Fatalf("expected one message got %d", len(publisher.messages))
	}

	msg := publisher.messages[0]
	if msg.OrderingKey != "TAP_001" {
		t.Fatalf("unexpected ordering key %s", msg.OrderingKey)
	}
	if msg.Attributes["dispenser_id"] != "TAP_001" || msg.Attributes["channel"] != "command" {
		t.Fatalf("unexpected attributes %+v", msg.Attributes)
	}

	var envelope dispenseEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Action != "dispense" || envelope.OrderID != orderID.String() {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if envelope.Timestamp != "2026-08-30T12:00:00Z" {
		t.Fatalf("unexpected timestamp %s", envelope.Timestamp)
	}
}

func TestPermitResponseEnvelope(t *testing.T) {
	publisher := &stubPublisher{}
	dispatcher := newTestDispatcher(publisher)

	err := dispatcher.PermitResponse(context.Background(), "TAP_002", true, 500, "Guest", "Dispensing permitted")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	msg := publisher.messages[0]
	if msg.Attributes["channel"] != "permit" {
		t.Fatalf("unexpected channel %s", msg.Attributes["channel"])
	}

	var envelope permitEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Action != "permit_response" || !envelope.Permitted || envelope.MaxML != 500 {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if envelope.UserName != "Guest" || envelope.Message != "Dispensing permitted" {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
}

func TestPublishFailureSurfaces(t *testing.T) {
	publisher := &stubPublisher{err: errors.New("broker down")}
	dispatcher := newTestDispatcher(publisher)

	err := dispatcher.Dispense(context.Background(), "TAP_001", uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
}
