package mission

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"questline/services/notification"
	"questline/services/reward"
	"questline/services/testutil"
	"questline/services/wallet"
)

type grantRecorder struct {
	grants []reward.Rewardable
}

func (s *grantRecorder) Grant(_ context.Context, _ string, r reward.Rewardable, _ string) error {
	s.grants = append(s.grants, r)
	return nil
}

func newTaskTestNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	return node
}

type dispatchSink struct{}

func (dispatchSink) Dispatch(context.Context, string, notification.Payload) error { return nil }

func TestHandleDistributeRewardsTask(t *testing.T) {
	db := testutil.NewTestDB(t, &reward.Rewardable{})

	registry := reward.NewRegistry(reward.RegistryParams{DB: db})
	strategy := &grantRecorder{}
	require.NoError(t, registry.Register(reward.RewardCoins, strategy))

	require.NoError(t, db.Create(&reward.Rewardable{
		ID:         "rw-1",
		SourceType: reward.SourceMission,
		SourceID:   "mission-1",
		RewardType: reward.RewardCoins,
		Amount:     50,
		CreatedAt:  time.Now(),
	}).Error)

	payload, err := json.Marshal(DistributeRewardsPayload{
		UserID:      "user-1",
		MissionID:   "mission-1",
		CompletedAt: time.Now().Unix(),
	})
	require.NoError(t, err)

	task := NewTask(TaskParams{Rewards: registry})
	require.NoError(t, task.HandleDistributeRewardsTask(context.Background(),
		asynq.NewTask(TaskDistributeRewards, payload)))

	require.Len(t, strategy.grants, 1)
	require.Equal(t, int64(50), strategy.grants[0].Amount)
}

func TestHandleDistributeRewardsTaskRedelivery(t *testing.T) {
	db := testutil.NewTestDB(t, &reward.Rewardable{}, &wallet.Wallet{}, &wallet.Transaction{})

	walletSvc := wallet.NewService(wallet.ServiceParams{DB: db, Node: newTaskTestNode(t)})
	registry := reward.NewRegistry(reward.RegistryParams{DB: db})
	require.NoError(t, registry.Register(reward.RewardCoins,
		reward.NewCoinStrategy(reward.CoinStrategyParams{Wallet: walletSvc, Notifier: dispatchSink{}})))

	require.NoError(t, db.Create(&reward.Rewardable{
		ID:         "rw-1",
		SourceType: reward.SourceMission,
		SourceID:   "mission-1",
		RewardType: reward.RewardCoins,
		Amount:     50,
		CreatedAt:  time.Now(),
	}).Error)

	payload, err := json.Marshal(DistributeRewardsPayload{
		UserID:      "user-1",
		MissionID:   "mission-1",
		CompletedAt: time.Now().Unix(),
	})
	require.NoError(t, err)

	task := NewTask(TaskParams{Rewards: registry})
	require.NoError(t, task.HandleDistributeRewardsTask(context.Background(),
		asynq.NewTask(TaskDistributeRewards, payload)))
	require.NoError(t, task.HandleDistributeRewardsTask(context.Background(),
		asynq.NewTask(TaskDistributeRewards, payload)))

	balance, err := walletSvc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)

	history, err := walletSvc.History(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestHandleDistributeRewardsTaskInvalidPayload(t *testing.T) {
	db := testutil.NewTestDB(t, &reward.Rewardable{})
	task := NewTask(TaskParams{Rewards: reward.NewRegistry(reward.RegistryParams{DB: db})})

	err := task.HandleDistributeRewardsTask(context.Background(),
		asynq.NewTask(TaskDistributeRewards, []byte("not json")))
	require.Error(t, err)
}

func TestDistributeRewardsPayloadTaskID(t *testing.T) {
	p := DistributeRewardsPayload{UserID: "user-1", MissionID: "mission-1", CompletedAt: 1700000000}
	require.Equal(t, "mission:distribute_rewards:user-1:mission-1:1700000000", p.TaskID())
}
