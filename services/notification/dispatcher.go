package notification

import (
	"context"
	"encoding/json"

	queue "questline/pkg/asynq"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Payload is the user-facing content of a notification.
type Payload struct {
	Icon      string
	Title     string
	ActionURL string
}

// Dispatcher hands a notification off for asynchronous delivery. Callers
// treat delivery as fire-and-forget: a failed dispatch is logged, never
// rolled back against the action that produced it.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, p Payload) error
}

// Enqueuer is the slice of the asynq client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher enqueues notifications onto the worker queue.
type QueueDispatcher struct {
	asynq Enqueuer
}

type DispatcherParams struct {
	fx.In
	Asynq *asynq.Client
}

func NewQueueDispatcher(p DispatcherParams) Dispatcher {
	return &QueueDispatcher{asynq: p.Asynq}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, userID string, p Payload) error {
	span := trace.SpanFromContext(ctx)

	payload, err := json.Marshal(DeliverPayload{
		UserID:    userID,
		Icon:      p.Icon,
		Title:     p.Title,
		ActionURL: p.ActionURL,
		TraceID:   span.SpanContext().TraceID().String(),
	})
	if err != nil {
		return err
	}

	if _, err := d.asynq.EnqueueContext(ctx,
		asynq.NewTask(TaskDeliver, payload),
		asynq.Queue(queue.QueueNotifications),
		asynq.MaxRetry(5),
	); err != nil {
		zap.L().Error("failed to enqueue notification",
			zap.String("user_id", userID),
			zap.String("title", p.Title),
			zap.Error(err),
		)
		return err
	}

	return nil
}
