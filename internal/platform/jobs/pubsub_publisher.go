package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/AlanaPvart7/Proyect2/internal/services"
)

// PubSubEventPublisher publishes fulfillment events to a Pub/Sub topic. Messages for the same order share
// an ordering key so subscribers observe them in publish order.
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a publisher for topic and enables message ordering on it.
func NewPubSubEventPublisher(topic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishEvent sends event and waits for the server assigned message id.
func (p *PubSubEventPublisher) PublishEvent(ctx context.Context, event services.FulfillmentEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	attrs := make(map[string]string, 4)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "lotId", event.LotID)

	orderingKey := strings.TrimSpace(event.OrderID)
	if orderingKey == "" {
		orderingKey = strings.TrimSpace(event.LotID)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: orderingKey,
	})
	id, err := result.Get(ctx)
	if err != nil {
		if orderingKey != "" {
			p.topic.ResumePublish(orderingKey)
		}
		return "", fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
