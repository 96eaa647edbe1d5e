package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AlanaPvart7/Proyect2/internal/services"
)

func newTestTopic(t *testing.T, srv *pstest.Server, name string) *pubsub.Topic {
	t.Helper()
	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, name)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	t.Cleanup(topic.Stop)
	return topic
}

func TestPubSubEventPublisherPublishesOrderEvent(t *testing.T) {
	srv := pstest.NewServer()
	defer srv.Close()

	publisher, err := NewPubSubEventPublisher(newTestTopic(t, srv, "fulfillment-events"))
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}

	event := services.FulfillmentEvent{
		ID:         "evt_01",
		Type:       services.EventOrderFinalized,
		OrderID:    "ord_01",
		ActorID:    "user-1",
		OccurredAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		Payload:    map[string]any{"status": "ordered"},
	}
	if _, err := publisher.PublishEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	msg := messages[0]

	var payload services.FulfillmentEvent
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ID != event.ID || payload.Type != event.Type || payload.OrderID != event.OrderID {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if msg.Attributes["eventType"] != services.EventOrderFinalized {
		t.Fatalf("expected eventType attribute, got %q", msg.Attributes["eventType"])
	}
	if _, ok := msg.Attributes["lotId"]; ok {
		t.Fatalf("empty lot id must not be set as attribute")
	}
	if msg.OrderingKey != "ord_01" {
		t.Fatalf("expected order id ordering key, got %q", msg.OrderingKey)
	}
}

func TestPubSubEventPublisherUsesLotKeyForInventoryEvents(t *testing.T) {
	srv := pstest.NewServer()
	defer srv.Close()

	publisher, err := NewPubSubEventPublisher(newTestTopic(t, srv, "inventory-events"))
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}

	event := services.FulfillmentEvent{
		ID:         "evt_02",
		Type:       services.EventInventoryOversold,
		LotID:      "lot_9",
		OccurredAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		Payload:    map[string]any{"oversold": 2},
	}
	if _, err := publisher.PublishEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].OrderingKey != "lot_9" || messages[0].Attributes["lotId"] != "lot_9" {
		t.Fatalf("unexpected routing %q %v", messages[0].OrderingKey, messages[0].Attributes)
	}
}

func TestNewPubSubEventPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubEventPublisher(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}
