package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	queue "questline/pkg/asynq"
	"questline/pkg/config"
	"questline/pkg/db"
	"questline/pkg/logger"
	"questline/pkg/redis"
	"questline/services/mission"
	"questline/services/notification"
	"questline/services/progression"
	"questline/services/reward"
	"questline/services/wallet"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		queue.Client,
		queue.Server,
		fx.Provide(
			provideSnowflakeNode,
		),
		notification.Module,
		notification.TaskModule,
		wallet.Module,
		reward.Module,
		progression.Module,
		progression.TaskModule,
		mission.Module,
		mission.TaskModule,
		mission.SchedulerModule,
		fx.Invoke(
			registerRewardStrategies,
			registerTaskHandlers,
		),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

// registerRewardStrategies wires every reward kind into the registry at
// startup. The experience strategy closes the loop between the registry and
// the progression engine, so it is built here rather than in either module.
func registerRewardStrategies(
	registry *reward.Registry,
	titles *reward.TitleStrategy,
	coins *reward.CoinStrategy,
	engine *progression.Service,
) error {
	if err := registry.Register(reward.RewardTitle, titles); err != nil {
		return err
	}
	if err := registry.Register(reward.RewardCoins, coins); err != nil {
		return err
	}
	return registry.Register(reward.RewardExperience, reward.NewExperienceStrategy(engine))
}

func registerTaskHandlers(mux *asynq.ServeMux, missions *mission.Task, levels *progression.Task, notifications *notification.Task) {
	mux.HandleFunc(mission.TaskDistributeRewards, missions.HandleDistributeRewardsTask)
	mux.HandleFunc(progression.TaskDistributeLevelRewards, levels.HandleDistributeLevelRewardsTask)
	mux.HandleFunc(notification.TaskDeliver, notifications.HandleDeliverTask)
}
