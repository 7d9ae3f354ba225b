package progression

import "fmt"

const (
	TaskDistributeLevelRewards = "level:distribute_rewards"
)

type DistributeLevelRewardsPayload struct {
	UserID  string `json:"user_id"`
	LevelID string `json:"level_id"`
	Level   int    `json:"level"`
	TraceID string `json:"trace_id,omitempty"`
}

// TaskID keys the asynq task so one level gain enqueues exactly one reward
// distribution. Levels are gained at most once per user, so no timestamp is
// needed.
func (p DistributeLevelRewardsPayload) TaskID() string {
	return fmt.Sprintf("%s:%s:%s", TaskDistributeLevelRewards, p.UserID, p.LevelID)
}
