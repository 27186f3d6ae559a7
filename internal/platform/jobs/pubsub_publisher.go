package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	"github.com/Prathaban-G/ecommerce/internal/services"
)

// ContactInterestEventType is carried in the eventType attribute.
const ContactInterestEventType = "storefront.contact_interest"

// ContactInterestEvent is the JSON payload published for every contact request.
type ContactInterestEvent struct {
	EventID         string    `json:"eventId"`
	SessionID       string    `json:"sessionId"`
	CategoryID      string    `json:"categoryId"`
	ItemID          string    `json:"itemId"`
	ItemName        string    `json:"itemName"`
	Price           float64   `json:"price"`
	DiscountedPrice float64   `json:"discountedPrice"`
	Discounted      bool      `json:"discounted"`
	StockTier       string    `json:"stockTier"`
	RequestedAt     time.Time `json:"requestedAt"`
}

// PubSubContactPublisher records contact interest on a Pub/Sub topic. It
// satisfies services.ContactSink.
type PubSubContactPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	newID   func() string
}

var _ services.ContactSink = (*PubSubContactPublisher)(nil)

// NewPubSubContactPublisher constructs a Pub/Sub backed contact sink.
func NewPubSubContactPublisher(topic *pubsub.Topic) (*PubSubContactPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub contact publisher: topic is required")
	}
	return &PubSubContactPublisher{
		topic:   topic,
		marshal: json.Marshal,
		newID: func() string {
			return ulid.Make().String()
		},
	}, nil
}

// Open publishes the contact request and waits for the server acknowledgement.
func (p *PubSubContactPublisher) Open(ctx context.Context, req services.ContactRequest) error {
	_, err := p.Publish(ctx, req)
	return err
}

// Publish enqueues the event and returns the server assigned message id.
func (p *PubSubContactPublisher) Publish(ctx context.Context, req services.ContactRequest) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub contact publisher: not initialised")
	}

	event := ContactInterestEvent{
		EventID:         p.newID(),
		SessionID:       req.SessionID,
		CategoryID:      req.CategoryID,
		ItemID:          req.Item.ID,
		ItemName:        req.Item.Name,
		Price:           req.Item.Price,
		DiscountedPrice: req.Item.DiscountedPrice,
		Discounted:      req.Item.HasDiscount(),
		StockTier:       string(req.Item.StockTier),
		RequestedAt:     req.RequestedAt.UTC(),
	}
	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal contact interest: %w", err)
	}

	attrs := map[string]string{"eventType": ContactInterestEventType}
	setAttr(attrs, "eventId", event.EventID)
	setAttr(attrs, "sessionId", event.SessionID)
	setAttr(attrs, "categoryId", event.CategoryID)
	setAttr(attrs, "itemId", event.ItemID)

	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish contact interest: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *PubSubContactPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
