package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"blogsmith/src/core/pipeline"
)

// EventPublisher forwards job events to EventsTopic so the API server can
// relay them to subscribed clients.
type EventPublisher struct {
	publisher message.Publisher
	logger    watermill.LoggerAdapter
}

func NewEventPublisher(publisher message.Publisher, logger watermill.LoggerAdapter) *EventPublisher {
	return &EventPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

var _ pipeline.Notifier = (*EventPublisher)(nil)

// Notify publishes the event. Delivery is best effort: a publish failure is
// logged and swallowed so event fan-out never fails a pipeline step.
func (p *EventPublisher) Notify(ctx context.Context, event pipeline.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal job event", err, watermill.LogFields{
			"job_id": event.JobID,
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(EventsTopic, msg); err != nil {
		p.logger.Error("Failed to publish job event", err, watermill.LogFields{
			"job_id": event.JobID,
			"kind":   string(event.Kind),
		})
	}
}

// EventBridge decodes events from EventsTopic and hands them to a sink,
// typically the in-process stream hub.
type EventBridge struct {
	sink pipeline.Notifier
}

func NewEventBridge(sink pipeline.Notifier) *EventBridge {
	return &EventBridge{sink: sink}
}

// HandleMessage is a watermill no-publisher handler for EventsTopic.
func (b *EventBridge) HandleMessage(msg *message.Message) error {
	var event pipeline.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal job event: %w", err)
	}
	b.sink.Notify(msg.Context(), event)
	return nil
}
