package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"questline/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Task struct {
	node          *snowflake.Node
	notifications repository.Repository[Notification]
}

type TaskParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewTask(p TaskParams) *Task {
	return &Task{
		node:          p.Node,
		notifications: repository.ProvideStore[Notification](p.DB),
	}
}

func (t *Task) HandleDeliverTask(ctx context.Context, task *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("user_id", payload.UserID),
		zap.String("trace_id", payload.TraceID),
	)

	raw, _ := json.Marshal(payload)
	row := &Notification{
		ID:        t.node.Generate().String(),
		UserID:    payload.UserID,
		Icon:      payload.Icon,
		Title:     payload.Title,
		ActionURL: payload.ActionURL,
		Payload:   datatypes.JSON(raw),
		CreatedAt: time.Now(),
	}

	if err := t.notifications.Create(ctx, row); err != nil {
		zapLog.Error("failed to persist notification", zap.Error(err))
		return err
	}

	zapLog.Info("notification delivered", zap.String("title", payload.Title))
	return nil
}
