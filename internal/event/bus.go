package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type PubSub interface {
	message.Publisher
	message.Subscriber
}

// Bus fans domain events out to subscribers over an in-process
// watermill channel.
type Bus struct {
	pubSub PubSub
	router *message.Router
	logger watermill.LoggerAdapter
}

// Handler handles one typed event.
type Handler[T any] func(ctx context.Context, event *Event[T]) error

// NewBus creates an in-process event bus.
func NewBus() (*Bus, error) {
	logger := watermill.NewStdLogger(false, false)

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
		},
		logger,
	)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}

	return &Bus{
		pubSub: pubSub,
		router: router,
		logger: logger,
	}, nil
}

// Start runs the router until ctx is cancelled. Subscriptions must be
// registered before Start.
func (b *Bus) Start(ctx context.Context) error {
	return b.router.Run(ctx)
}

func (b *Bus) Stop() error {
	return b.router.Close()
}

// Publish publishes a data payload, inferring the event type from its
// Go type.
func (b *Bus) Publish(ctx context.Context, source string, data any) error {
	eventType := inferType(data)

	rawData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	eventMsg := &Message{
		ID:        newEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Data:      rawData,
	}

	payload, err := json.Marshal(eventMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := b.pubSub.Publish(string(eventType), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// SubscribeAsync registers a raw message handler on the router.
func (b *Bus) SubscribeAsync(eventType Type, handlerName string, handler func(msg *message.Message) error) {
	b.router.AddNoPublisherHandler(
		handlerName,
		string(eventType),
		b.pubSub,
		handler,
	)
}

// SubscribeTyped registers a handler that receives decoded typed events.
func SubscribeTyped[T any](b *Bus, eventType Type, handlerName string, handler Handler[T]) {
	b.SubscribeAsync(eventType, handlerName, func(msg *message.Message) error {
		var eventMsg Message
		if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
			return fmt.Errorf("failed to unmarshal event message: %w", err)
		}

		ev, err := FromMessage[T](&eventMsg)
		if err != nil {
			return fmt.Errorf("failed to decode event %s: %w", eventMsg.ID, err)
		}

		return handler(msg.Context(), ev)
	})
}
