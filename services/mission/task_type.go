package mission

import "fmt"

const (
	TaskDistributeRewards = "mission:distribute_rewards"
)

type DistributeRewardsPayload struct {
	UserID      string `json:"user_id"`
	MissionID   string `json:"mission_id"`
	CompletedAt int64  `json:"completed_at"`
	TraceID     string `json:"trace_id,omitempty"`
}

// TaskID keys the asynq task so that one completion event enqueues exactly
// one reward distribution, even under concurrent triggers.
func (p DistributeRewardsPayload) TaskID() string {
	return fmt.Sprintf("%s:%s:%s:%d", TaskDistributeRewards, p.UserID, p.MissionID, p.CompletedAt)
}
