package mission

import (
	"context"
	"encoding/json"
	"fmt"

	"questline/services/reward"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Task owns the queued half of mission completion: distributing configured
// rewards to the user once the completion has been recorded.
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

func (t *Task) HandleDistributeRewardsTask(ctx context.Context, task *asynq.Task) error {
	var payload DistributeRewardsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("user_id", payload.UserID),
		zap.String("mission_id", payload.MissionID),
		zap.String("trace_id", payload.TraceID),
	)
	zapLog.Info("start mission reward distribution")

	if err := t.rewards.Distribute(ctx, payload.UserID, reward.Source{
		Type: reward.SourceMission,
		ID:   payload.MissionID,
	}, payload.TaskID()); err != nil {
		zapLog.Error("mission reward distribution failed", zap.Error(err))
		return err
	}

	zapLog.Info("mission rewards distributed")
	return nil
}
