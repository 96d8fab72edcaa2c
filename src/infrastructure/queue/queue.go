// Package queue carries pipeline phase tasks and job events over AMQP.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"blogsmith/src/core/pipeline"
)

const (
	// TasksTopic carries phase execution tasks consumed by workers.
	TasksTopic = "pipeline.tasks"
	// EventsTopic carries job progress events consumed by the API server.
	EventsTopic = "job.events"
)

// TaskMessage is the payload of a phase task on TasksTopic.
type TaskMessage struct {
	JobID int64          `json:"job_id"`
	Phase pipeline.Phase `json:"phase"`
}

// Service publishes phase tasks for workers to pick up.
type Service struct {
	publisher message.Publisher
	logger    watermill.LoggerAdapter
}

func NewService(publisher message.Publisher, logger watermill.LoggerAdapter) *Service {
	return &Service{
		publisher: publisher,
		logger:    logger,
	}
}

var _ pipeline.Enqueuer = (*Service)(nil)

// EnqueuePhase publishes a task instructing a worker to run the given phase.
func (s *Service) EnqueuePhase(ctx context.Context, jobID int64, phase pipeline.Phase) error {
	payload, err := json.Marshal(TaskMessage{JobID: jobID, Phase: phase})
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := s.publisher.Publish(TasksTopic, msg); err != nil {
		return fmt.Errorf("failed to publish task message: %w", err)
	}

	s.logger.Info("Enqueued pipeline phase", watermill.LogFields{
		"job_id": jobID,
		"phase":  string(phase),
	})
	return nil
}
