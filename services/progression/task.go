package progression

import (
	"context"
	"encoding/json"
	"fmt"

	"questline/services/reward"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Task owns the queued half of level progression: distributing rewards
// configured on a gained level.
type Task struct {
	rewards *reward.Registry
}

type TaskParams struct {
	fx.In
	Rewards *reward.Registry
}

func NewTask(p TaskParams) *Task {
	return &Task{rewards: p.Rewards}
}

func (t *Task) HandleDistributeLevelRewardsTask(ctx context.Context, task *asynq.Task) error {
	var payload DistributeLevelRewardsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("user_id", payload.UserID),
		zap.String("level_id", payload.LevelID),
		zap.Int("level", payload.Level),
		zap.String("trace_id", payload.TraceID),
	)
	zapLog.Info("start level reward distribution")

	if err := t.rewards.Distribute(ctx, payload.UserID, reward.Source{
		Type: reward.SourceLevel,
		ID:   payload.LevelID,
	}, payload.TaskID()); err != nil {
		zapLog.Error("level reward distribution failed", zap.Error(err))
		return err
	}

	zapLog.Info("level rewards distributed")
	return nil
}
