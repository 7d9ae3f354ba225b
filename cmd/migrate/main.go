package main

import (
	"go.uber.org/zap"

	"questline/pkg/config"
	"questline/pkg/db"
	"questline/pkg/logger"
	"questline/services/mission"
	"questline/services/notification"
	"questline/services/progression"
	"questline/services/reward"
	"questline/services/wallet"
)

// Applies the schema for every model this engine owns. Catalog tables
// (missions, requirements, levels, titles, rewardables) are included so a
// fresh environment can be seeded immediately after.
func main() {
	cfg := config.LoadConfig()
	zapLog := logger.New(logger.ConfigParams{Cfg: cfg})
	defer zapLog.Sync()

	gdb := db.New(cfg, db.Dialect(cfg))

	if err := gdb.AutoMigrate(
		&mission.Mission{},
		&mission.Requirement{},
		&mission.UserProgress{},
		&mission.UserMission{},
		&reward.Rewardable{},
		&reward.Title{},
		&reward.UserTitle{},
		&progression.Level{},
		&progression.User{},
		&progression.ExperienceGrant{},
		&wallet.Wallet{},
		&wallet.Transaction{},
		&notification.Notification{},
	); err != nil {
		zap.L().Fatal("migration failed", zap.Error(err))
	}

	zap.L().Info("migration complete")
}
