package queue

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"blogsmith/src/core/pipeline"
)

// Worker consumes phase tasks and runs them through the pipeline executor.
type Worker struct {
	executor *pipeline.Executor
	logger   watermill.LoggerAdapter
}

func NewWorker(executor *pipeline.Executor, logger watermill.LoggerAdapter) *Worker {
	return &Worker{
		executor: executor,
		logger:   logger,
	}
}

// ProcessTask handles one task message from TasksTopic.
//
// A task whose job is no longer in the phase's entry status is acknowledged
// without effect: it is a duplicate delivery or a task that raced a human
// decision, and requeueing it cannot make it runnable again.
func (w *Worker) ProcessTask(msg *message.Message) error {
	var task TaskMessage
	if err := json.Unmarshal(msg.Payload, &task); err != nil {
		return fmt.Errorf("failed to unmarshal task message: %w", err)
	}

	err := w.executor.Run(msg.Context(), task.JobID, task.Phase)
	if pipeline.IsInvalidState(err) {
		w.logger.Info("Skipping stale pipeline task", watermill.LogFields{
			"job_id": task.JobID,
			"phase":  string(task.Phase),
			"reason": err.Error(),
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run phase %s for job %d: %w", task.Phase, task.JobID, err)
	}
	return nil
}
